package cas

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const successXML = `<cas:serviceResponse xmlns:cas="http://www.yale.edu/tp/cas">
  <cas:authenticationSuccess>
    <cas:user>abc12</cas:user>
    <cas:attributes>
      <cas:eduPersonAffiliation>student</cas:eduPersonAffiliation>
      <cas:member>CMPT-474</cas:member>
      <cas:member>student-member</cas:member>
      <cas:member>MATH100</cas:member>
      <cas:member>cmpt120-d1</cas:member>
    </cas:attributes>
  </cas:authenticationSuccess>
</cas:serviceResponse>`

const staffXML = `<cas:serviceResponse xmlns:cas="http://www.yale.edu/tp/cas">
  <cas:authenticationSuccess>
    <cas:user>prof1</cas:user>
    <cas:attributes>
      <cas:eduPersonAffiliation>staff</cas:eduPersonAffiliation>
      <cas:member>CMPT-474</cas:member>
    </cas:attributes>
  </cas:authenticationSuccess>
</cas:serviceResponse>`

const failureXML = `<cas:serviceResponse xmlns:cas="http://www.yale.edu/tp/cas">
  <cas:authenticationFailure code="INVALID_TICKET">Ticket ST-1 not recognized</cas:authenticationFailure>
</cas:serviceResponse>`

func newTestValidator(t *testing.T, handler http.HandlerFunc) *Validator {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	v, err := NewValidator(ValidatorOptions{BaseURL: srv.URL + "/cas", Timeout: 2 * time.Second})
	require.NoError(t, err)
	return v
}

func xmlHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(body))
	}
}

func TestValidateTicket_Success(t *testing.T) {
	var gotPath, gotService, gotTicket string
	v := newTestValidator(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotService = r.URL.Query().Get("service")
		gotTicket = r.URL.Query().Get("ticket")
		xmlHandler(successXML)(w, r)
	})

	res := v.ValidateTicket(context.Background(), "https://app.example/login?next=/a&b=1", "ST-1")

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "abc12", res.Identity)
	assert.Equal(t, []string{"CMPT-474", "MATH100", "cmpt120-d1"}, res.Courses)
	assert.Empty(t, res.Error)
	assert.Equal(t, "/cas/serviceValidate", gotPath)
	assert.Equal(t, "https://app.example/login?next=/a&b=1", gotService)
	assert.Equal(t, "ST-1", gotTicket)
}

func TestValidateTicket_MultiValuedAffiliation(t *testing.T) {
	body := `<cas:serviceResponse xmlns:cas="http://www.yale.edu/tp/cas">
  <cas:authenticationSuccess>
    <cas:user>abc12</cas:user>
    <cas:attributes>
      <cas:eduPersonAffiliation>member</cas:eduPersonAffiliation>
      <cas:eduPersonAffiliation>student</cas:eduPersonAffiliation>
    </cas:attributes>
  </cas:authenticationSuccess>
</cas:serviceResponse>`
	v := newTestValidator(t, xmlHandler(body))

	res := v.ValidateTicket(context.Background(), "https://app.example", "ST-1")
	require.True(t, res.Success)
	assert.Equal(t, "abc12", res.Identity)
	assert.Empty(t, res.Courses)
}

func TestValidateTicket_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr string
	}{
		{name: "provider failure envelope", handler: xmlHandler(failureXML), wantErr: ErrInvalidLogin},
		{name: "not a student", handler: xmlHandler(staffXML), wantErr: ErrNotStudent},
		{
			name:    "no success envelope",
			handler: xmlHandler(`<cas:serviceResponse xmlns:cas="http://www.yale.edu/tp/cas"></cas:serviceResponse>`),
			wantErr: ErrInvalidLogin,
		},
		{
			name: "empty user",
			handler: xmlHandler(`<cas:serviceResponse xmlns:cas="http://www.yale.edu/tp/cas">
<cas:authenticationSuccess><cas:user> </cas:user></cas:authenticationSuccess></cas:serviceResponse>`),
			wantErr: ErrInvalidLogin,
		},
		{
			name: "missing attributes",
			handler: xmlHandler(`<cas:serviceResponse xmlns:cas="http://www.yale.edu/tp/cas">
<cas:authenticationSuccess><cas:user>abc12</cas:user></cas:authenticationSuccess></cas:serviceResponse>`),
			wantErr: ErrNotStudent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestValidator(t, tt.handler)
			res := v.ValidateTicket(context.Background(), "https://app.example", "ST-1")
			assert.False(t, res.Success)
			assert.Equal(t, tt.wantErr, res.Error)
			assert.Empty(t, res.Identity)
			assert.NotNil(t, res.Courses)
		})
	}
}

func TestValidateTicket_TransportAndParseErrors(t *testing.T) {
	t.Run("non-2xx", func(t *testing.T) {
		v := newTestValidator(t, func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "down", http.StatusBadGateway)
		})
		res := v.ValidateTicket(context.Background(), "https://app.example", "ST-1")
		assert.False(t, res.Success)
		assert.Equal(t, ErrUnavailable, res.Error)
	})

	t.Run("malformed xml", func(t *testing.T) {
		v := newTestValidator(t, xmlHandler("<cas:serviceResponse><oops"))
		res := v.ValidateTicket(context.Background(), "https://app.example", "ST-1")
		assert.False(t, res.Success)
		assert.NotEmpty(t, res.Error)
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		v, err := NewValidator(ValidatorOptions{BaseURL: url, Timeout: time.Second})
		require.NoError(t, err)
		res := v.ValidateTicket(context.Background(), "https://app.example", "ST-1")
		assert.False(t, res.Success)
		assert.NotEmpty(t, res.Error)
	})

	t.Run("unreachable does not leak ticket", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		base := srv.URL + "/cas"
		srv.Close()

		var logs bytes.Buffer
		v, err := NewValidator(ValidatorOptions{
			BaseURL: base,
			Timeout: time.Second,
			Logger:  slog.New(slog.NewJSONHandler(&logs, nil)),
		})
		require.NoError(t, err)

		const ticket = "ST-SECRET-TICKET-123"
		res := v.ValidateTicket(context.Background(), "https://app.example", ticket)
		assert.False(t, res.Success)
		assert.Equal(t, ErrUnavailable, res.Error)
		assert.NotContains(t, res.Error, ticket)
		assert.NotEmpty(t, logs.String())
		assert.NotContains(t, logs.String(), ticket)
		assert.Contains(t, logs.String(), "serviceValidate")
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		}))
		t.Cleanup(srv.Close)

		v, err := NewValidator(ValidatorOptions{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
		require.NoError(t, err)
		res := v.ValidateTicket(context.Background(), "https://app.example", "ST-1")
		assert.False(t, res.Success)
		assert.NotEmpty(t, res.Error)
	})
}

func TestValidateTicket_SingleAttempt(t *testing.T) {
	calls := 0
	v := newTestValidator(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	_ = v.ValidateTicket(context.Background(), "https://app.example", "ST-1")
	assert.Equal(t, 1, calls)
}

func TestNewValidator_RequiresBaseURL(t *testing.T) {
	_, err := NewValidator(ValidatorOptions{})
	assert.Error(t, err)

	_, err = NewValidator(ValidatorOptions{BaseURL: "not a url"})
	assert.Error(t, err)
}
