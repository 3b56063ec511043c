/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package api

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/telekom/auditlog-forwarder/pkg/apiresponses"
	"github.com/telekom/auditlog-forwarder/pkg/storelog"
	"github.com/telekom/auditlog-forwarder/pkg/system"
)

// FaultRequest is the body of PUT /api/stub/fault.
type FaultRequest struct {
	Fault string `json:"fault"`
}

func (s *Server) storeLog(c *gin.Context) {
	log := system.GetReqLogger(c, s.logger)

	var req storelog.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		apiresponses.RespondBadRequestWithDetails(c, "invalid StoreLog request", err.Error())
		return
	}

	result, err := s.cfg.Stub.StoreLog(c.Request.Context(), req.LogicalAddress, req.Logs)
	if err != nil {
		if errors.Is(err, storelog.ErrStoreUnavailable) {
			apiresponses.RespondServiceUnavailable(c, "log store")
			return
		}
		apiresponses.RespondInternalError(c, "store logs", err, log)
		return
	}
	log.Debugw("Stub store answered", "logs", len(req.Logs), "resultCode", result.ResultCode)
	apiresponses.RespondOK(c, result)
}

func (s *Server) listLogs(c *gin.Context) {
	apiresponses.RespondOK(c, s.cfg.Stub.Logs())
}

func (s *Server) resetLogs(c *gin.Context) {
	s.cfg.Stub.Reset()
	apiresponses.RespondNoContent(c)
}

func (s *Server) getFault(c *gin.Context) {
	apiresponses.RespondOK(c, FaultRequest{Fault: string(s.cfg.Stub.Fault())})
}

func (s *Server) putFault(c *gin.Context) {
	var req FaultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiresponses.RespondBadRequestWithDetails(c, "invalid fault request", err.Error())
		return
	}
	fault, err := storelog.ParseFault(req.Fault)
	if err != nil {
		apiresponses.RespondBadRequest(c, err.Error())
		return
	}
	s.cfg.Stub.SetFault(fault)
	system.GetReqLogger(c, s.logger).Infow("Stub store fault mode changed", "fault", fault)
	apiresponses.RespondOK(c, FaultRequest{Fault: string(fault)})
}
