package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// billingArgs are the tool arguments that identify what was billed. Invoice
// contents and user lists are never logged.
type billingArgs struct {
	QuarterStart string `json:"quarter_start"`
	PILastName   string `json:"pi_last_name"`
	Start        string `json:"start"`
	End          string `json:"end"`
}

// trafficLoggingMiddleware logs each MCP exchange at debug level. Tool calls
// carry the tool name and the quarter, PI or window asked about.
func trafficLoggingMiddleware(logger *slog.Logger, direction string) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if logger == nil || !logger.Enabled(ctx, slog.LevelDebug) {
				return next(ctx, method, req)
			}

			attrs := append([]any{"direction", direction, "method", method, "session_id", safeSessionID(req)}, toolCallAttrs(req)...)
			logger.Debug("mcp request", attrs...)

			began := time.Now()
			result, err := next(ctx, method, req)
			if strings.HasPrefix(method, "notifications/") {
				return result, err
			}

			attrs = append(attrs, "elapsed", time.Since(began))
			if res, ok := result.(*sdkmcp.CallToolResult); ok && res != nil {
				attrs = append(attrs, "tool_error", res.IsError)
			}
			if err != nil {
				attrs = append(attrs, "error", err)
			}
			logger.Debug("mcp response", attrs...)
			return result, err
		}
	}
}

// toolCallAttrs returns the log attributes of a tools/call request, or nil
// for any other request.
func toolCallAttrs(req sdkmcp.Request) []any {
	var (
		name string
		raw  json.RawMessage
	)
	switch p := safeParams(req).(type) {
	case *sdkmcp.CallToolParamsRaw:
		if p == nil {
			return nil
		}
		name, raw = p.Name, p.Arguments
	case *sdkmcp.CallToolParams:
		if p == nil {
			return nil
		}
		name = p.Name
		raw, _ = json.Marshal(p.Arguments)
	default:
		return nil
	}

	attrs := []any{"tool", name}
	var args billingArgs
	if len(raw) == 0 || json.Unmarshal(raw, &args) != nil {
		return attrs
	}
	for _, kv := range [][2]string{
		{"quarter_start", args.QuarterStart},
		{"pi_last_name", args.PILastName},
		{"start", args.Start},
		{"end", args.End},
	} {
		if kv[1] != "" {
			attrs = append(attrs, kv[0], kv[1])
		}
	}
	return attrs
}

func safeSessionID(req sdkmcp.Request) string {
	if req == nil {
		return ""
	}
	defer func() { recover() }()
	session := req.GetSession()
	if session == nil {
		return ""
	}
	return session.ID()
}

func safeParams(req sdkmcp.Request) any {
	if req == nil {
		return nil
	}
	defer func() { recover() }()
	return req.GetParams()
}
