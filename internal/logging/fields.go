package logging

import (
	"time"

	"go.uber.org/zap"
)

// Fields is a small fluent builder for structured log fields, kept as a
// plain map so call sites can pass it straight to zap.SugaredLogger.Infow.
type Fields map[string]interface{}

func NewFields() Fields {
	return Fields{}
}

func (f Fields) Component(name string) Fields {
	f["component"] = name
	return f
}

func (f Fields) Operation(op string) Fields {
	f["operation"] = op
	return f
}

func (f Fields) Resource(resourceType, name string) Fields {
	f["resource_type"] = resourceType
	if name != "" {
		f["resource_name"] = name
	}
	return f
}

func (f Fields) Duration(d time.Duration) Fields {
	f["duration_ms"] = d.Milliseconds()
	return f
}

func (f Fields) Error(err error) Fields {
	if err != nil {
		f["error"] = err.Error()
	}
	return f
}

func (f Fields) UserID(id string) Fields {
	if id != "" {
		f["user_id"] = id
	}
	return f
}

func (f Fields) RequestID(id string) Fields {
	if id != "" {
		f["request_id"] = id
	}
	return f
}

func (f Fields) TraceID(id string) Fields {
	if id != "" {
		f["trace_id"] = id
	}
	return f
}

func (f Fields) StatusCode(code int) Fields {
	f["status_code"] = code
	return f
}

func (f Fields) Method(method string) Fields {
	f["method"] = method
	return f
}

func (f Fields) URL(url string) Fields {
	f["url"] = url
	return f
}

func (f Fields) Count(n int) Fields {
	f["count"] = n
	return f
}

func (f Fields) Size(bytes int64) Fields {
	f["size_bytes"] = bytes
	return f
}

func (f Fields) Custom(key string, value interface{}) Fields {
	f[key] = value
	return f
}

// ToZap renders the builder into zap.Field values for a structured
// logger call.
func (f Fields) ToZap() []zap.Field {
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		out = append(out, zap.Any(k, v))
	}
	return out
}

// StatementFields is the common shape for statements executed against
// the live database or the state store.
func StatementFields(operation, table string) Fields {
	return NewFields().Component("database").Operation(operation).Resource("table", table)
}

// HTTPFields is the common shape for a single outbound LLM provider
// HTTP call.
func HTTPFields(method, url string, statusCode int) Fields {
	f := NewFields().Component("http").Method(method).URL(url)
	if statusCode > 0 {
		f.StatusCode(statusCode)
	}
	return f
}

// LLMFields is the common shape for a completion call against a
// provider gateway.
func LLMFields(provider, model string) Fields {
	return NewFields().Component("llm").Custom("provider", provider).Custom("model", model)
}

// RequestFields is the common shape for an orchestrator request
// lifecycle event.
func RequestFields(requestID, kind string) Fields {
	return NewFields().Component("orchestrator").RequestID(requestID).Custom("request_kind", kind)
}
