// Package apiresponses provides the JSON response helpers shared by the
// admin API handlers.
package apiresponses
