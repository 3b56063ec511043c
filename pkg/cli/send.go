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

package cli

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/telekom/auditlog-forwarder/pkg/model"
	"github.com/telekom/auditlog-forwarder/pkg/pipeline"
)

// NewSendCommand publishes events to the inbound destination, one JSON
// object per line.
func NewSendCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Publish log events (one JSON object per line) to the inbound queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			cfg, err := rt.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Queues.Transport == "memory" {
				return fmt.Errorf("send needs a broker transport, the memory transport only lives inside serve")
			}

			in := cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", file, err)
				}
				defer f.Close()
				in = f
			}
			payloads, err := readEvents(in)
			if err != nil {
				return err
			}
			if len(payloads) == 0 {
				return fmt.Errorf("no events to send")
			}

			logger, err := rt.logger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			transport, err := pipeline.BuildTransport(cfg, logger)
			if err != nil {
				return err
			}
			defer transport.Close()

			pub, err := transport.Publisher(cfg.Queues.Inbound)
			if err != nil {
				return err
			}
			defer pub.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Kafka.WriteTimeout.Std())
			defer cancel()
			if err := pub.Publish(ctx, payloads...); err != nil {
				return err
			}
			logger.Info("events published", zap.Int("count", len(payloads)), zap.String("destination", pub.Name()))
			_, _ = fmt.Fprintf(rt.Writer(), "sent %d events to %s\n", len(payloads), pub.Name())
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "File with one JSON log event per line, - for stdin")
	return cmd
}

// readEvents reads newline-delimited events, rejecting lines that are not log events.
func readEvents(r io.Reader) ([][]byte, error) {
	var payloads [][]byte
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		if _, err := model.Decode(text); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		payloads = append(payloads, append([]byte(nil), text...))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	return payloads, nil
}
