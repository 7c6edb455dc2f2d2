package retry

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/launchkit/campaign-indexer/internal/chain/rpc"
)

// Class partitions RPC failures by how the caller should react:
// transient errors rotate endpoints, rate limits split ranges and back off,
// pruned history is unservable and must be skipped, everything else is
// terminal for the current operation.
type Class string

const (
	ClassTerminal    Class = "terminal"
	ClassTransient   Class = "transient"
	ClassRateLimited Class = "rate_limited"
	ClassPruned      Class = "pruned"
)

type Decision struct {
	Class  Class
	Reason string
}

func (d Decision) IsTransient() bool {
	return d.Class == ClassTransient
}

func (d Decision) IsRateLimited() bool {
	return d.Class == ClassRateLimited
}

func (d Decision) IsPruned() bool {
	return d.Class == ClassPruned
}

type classifiedError struct {
	err    error
	class  Class
	reason string
}

func (e *classifiedError) Error() string {
	return e.err.Error()
}

func (e *classifiedError) Unwrap() error {
	return e.err
}

func mark(err error, class Class, reason string) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, class: class, reason: reason}
}

func Transient(err error) error   { return mark(err, ClassTransient, "explicit_transient") }
func RateLimited(err error) error { return mark(err, ClassRateLimited, "explicit_rate_limited") }
func Pruned(err error) error      { return mark(err, ClassPruned, "explicit_pruned") }
func Terminal(err error) error    { return mark(err, ClassTerminal, "explicit_terminal") }

func Classify(err error) Decision {
	if err == nil {
		return Decision{Class: ClassTerminal, Reason: "nil_error"}
	}

	var marked *classifiedError
	if errors.As(err, &marked) {
		return Decision{Class: marked.class, Reason: marked.reason}
	}

	if errors.Is(err, context.Canceled) {
		return Decision{Class: ClassTerminal, Reason: "context_canceled"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Decision{Class: ClassTransient, Reason: "context_deadline_exceeded"}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Decision{Class: ClassTransient, Reason: "net_timeout"}
	}

	lower := strings.ToLower(err.Error())

	var rpcErr *rpc.RPCError
	if errors.As(err, &rpcErr) {
		return classifyJSONRPC(rpcErr.Code, lower)
	}

	if containsAny(lower, prunedMessageTokens) {
		return Decision{Class: ClassPruned, Reason: "message_pruned"}
	}
	if containsAny(lower, rateLimitMessageTokens) {
		return Decision{Class: ClassRateLimited, Reason: "message_rate_limited"}
	}
	if containsAny(lower, transientMessageTokens) {
		return Decision{Class: ClassTransient, Reason: "message_transient"}
	}

	return Decision{Class: ClassTerminal, Reason: "unknown_terminal_default"}
}

func classifyJSONRPC(code int, lowerMsg string) Decision {
	if containsAny(lowerMsg, prunedMessageTokens) {
		return Decision{Class: ClassPruned, Reason: "jsonrpc_pruned"}
	}
	// -32005 is the de-facto "limit exceeded" code across providers.
	if code == -32005 || containsAny(lowerMsg, rateLimitMessageTokens) {
		return Decision{Class: ClassRateLimited, Reason: "jsonrpc_rate_limited"}
	}
	if code <= -32000 && code >= -32099 {
		return Decision{Class: ClassTransient, Reason: "jsonrpc_server_range"}
	}
	return Decision{Class: ClassTerminal, Reason: "jsonrpc_terminal"}
}

func containsAny(msg string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(msg, token) {
			return true
		}
	}
	return false
}

var rateLimitMessageTokens = []string{
	"too many requests",
	"rate limit",
	"rate-limit",
	"limit exceeded",
	"limit reached",
	"exceeded the quota",
	"http status 429",
	"429",
	"compute units",
}

var prunedMessageTokens = []string{
	"pruned",
	"missing trie node",
	"block range too old",
	"older than the configured",
	"ledger jump",
	"state is not available",
	"ancient block",
}

var transientMessageTokens = []string{
	"timeout",
	"timed out",
	"temporar",
	"unavailable",
	"connection reset",
	"connection refused",
	"broken pipe",
	"econnreset",
	"econnrefused",
	"tls handshake",
	"http status 500",
	"http status 502",
	"http status 503",
	"http status 504",
	"server closed idle connection",
	"eof",
	"bad gateway",
}
