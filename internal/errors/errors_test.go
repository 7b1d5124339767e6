package errors

import (
	"errors"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestErrors(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Errors Suite")
}

var _ = Describe("AppError", func() {
	Context("basic error creation", func() {
		It("should create an error with correct properties", func() {
			err := New(KindConfig, "load settings")

			Expect(err.Kind).To(Equal(KindConfig))
			Expect(err.Operation).To(Equal("load settings"))
			Expect(err.Details).To(BeEmpty())
			Expect(err.Cause).To(BeNil())
		})

		It("should implement the error interface", func() {
			err := New(KindSafety, "classify sql")
			Expect(err.Error()).To(Equal("safety: classify sql"))
		})

		It("should include details, component and cause in the message", func() {
			cause := errors.New("parse failure")
			err := Wrap(cause, KindSafety, "classify sql").
				WithComponent("classifier").
				WithResource("statement").
				WithDetails("fail-closed")

			Expect(err.Error()).To(Equal(
				"safety: classify sql, component: classifier, resource: statement (fail-closed), cause: parse failure"))
		})
	})

	Context("wrapping", func() {
		It("wraps an underlying cause and unwraps back to it", func() {
			cause := errors.New("connection refused")
			err := Wrap(cause, KindConnection, "dial postgres")

			Expect(err.Cause).To(Equal(cause))
			Expect(err.Unwrap()).To(Equal(cause))
			Expect(errors.Is(err, cause)).To(BeTrue())
		})

		It("formats Wrapf with arguments", func() {
			cause := errors.New("timeout")
			err := Wrapf(cause, KindQuery, "execute against %s", "orders")

			Expect(err.Operation).To(Equal("execute against orders"))
			Expect(err.Cause).To(Equal(cause))
		})
	})

	DescribeTable("kind-specific constructors set the expected kind",
		func(err *AppError, want Kind) {
			Expect(err.Kind).To(Equal(want))
		},
		Entry("connection", ConnectionError("connect", nil), KindConnection),
		Entry("query", QueryError("execute", nil), KindQuery),
		Entry("llm", LLMError("complete", nil), KindLLM),
		Entry("safety", SafetyError("classify", nil), KindSafety),
		Entry("state", StateError("write", nil), KindState),
	)

	Describe("ConfigError and ValidationError", func() {
		It("formats configuration errors", func() {
			err := ConfigError("database.host", "value is required")
			Expect(err.Error()).To(Equal("config: configuration error for setting database.host (value is required)"))
		})

		It("formats validation errors", func() {
			err := ValidationError("email", "invalid format")
			Expect(err.Error()).To(Equal("config: validation failed for field email (invalid format)"))
		})
	})

	Describe("TimeoutError", func() {
		It("formats with the kind and duration", func() {
			err := TimeoutError(KindQuery, "executing query", "30s")
			Expect(err.Error()).To(Equal("query: timeout while executing query (after 30s)"))
		})
	})

	Describe("IsKind / GetKind", func() {
		It("identifies the kind of a classified error", func() {
			err := SafetyError("classify", nil)
			Expect(IsKind(err, KindSafety)).To(BeTrue())
			Expect(IsKind(err, KindQuery)).To(BeFalse())
		})

		It("treats unclassified errors as KindState", func() {
			plain := errors.New("boom")
			Expect(IsKind(plain, KindSafety)).To(BeFalse())
			Expect(GetKind(plain)).To(Equal(KindState))
		})
	})

	Describe("LogFields", func() {
		It("includes kind, details and underlying error when present", func() {
			cause := errors.New("connection lost")
			err := Wrapf(cause, KindState, "write history").WithDetails("table: history")

			fields := LogFields(err)
			Expect(fields).To(HaveKeyWithValue("error_kind", "state"))
			Expect(fields).To(HaveKeyWithValue("error_details", "table: history"))
			Expect(fields).To(HaveKeyWithValue("underlying_error", "connection lost"))
		})

		It("omits optional keys for a plain error", func() {
			fields := LogFields(errors.New("regular error"))
			Expect(fields).To(HaveKey("error"))
			Expect(fields).NotTo(HaveKey("error_kind"))
		})
	})

	Describe("Chain", func() {
		It("returns nil for no errors", func() {
			Expect(Chain()).To(BeNil())
			Expect(Chain(nil, nil)).To(BeNil())
		})

		It("returns the single error unchanged", func() {
			e := errors.New("only one")
			Expect(Chain(e)).To(Equal(e))
		})

		It("joins multiple errors with an arrow", func() {
			e1 := errors.New("first")
			e2 := errors.New("second")
			chained := Chain(e1, nil, e2)

			Expect(chained.Error()).To(ContainSubstring("first"))
			Expect(chained.Error()).To(ContainSubstring("second"))
			Expect(chained.Error()).To(ContainSubstring(" -> "))
		})
	})
})

func TestFailedTo(t *testing.T) {
	tests := []struct {
		name     string
		action   string
		cause    error
		expected string
	}{
		{"with cause", "connect to database", errors.New("connection refused"), "failed to connect to database: connection refused"},
		{"without cause", "start server", nil, "failed to start server"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FailedTo(tt.action, tt.cause).Error(); got != tt.expected {
				t.Errorf("FailedTo() = %q, want %q", got, tt.expected)
			}
		})
	}
}
