package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	jwtadapter "github.com/cmpt474/mm-login-gateway/internal/adapters/jwt"
	"github.com/cmpt474/mm-login-gateway/internal/adapters/memstore"
	domainauth "github.com/cmpt474/mm-login-gateway/internal/domain/auth"
	apperrors "github.com/cmpt474/mm-login-gateway/internal/errors"
	"github.com/cmpt474/mm-login-gateway/internal/mocks"
	authmocks "github.com/cmpt474/mm-login-gateway/internal/mocks/auth"
	"github.com/cmpt474/mm-login-gateway/internal/ports"
)

const (
	testReferrer = "https://mentor.example.com/login"
	testCode     = "let-me-mentor"
	goodCaptcha  = "captcha-ok"
)

type gatewayFixture struct {
	svc     *GatewayService
	users   *memstore.UserStore
	tickets *authmocks.StubTicketValidator
	tokens  ports.TokenIssuer
	captcha *authmocks.StubChallengeVerifier
}

func newJWTIssuer(t *testing.T) *jwtadapter.Issuer {
	t.Helper()
	iss, err := jwtadapter.NewIssuer(jwtadapter.IssuerOptions{
		Secret:        []byte("0123456789abcdef0123456789abcdef"),
		GatewayDomain: "https://gateway.example.com",
		WebappDomain:  "https://mentor.example.com",
		TTL:           time.Hour,
	})
	require.NoError(t, err)
	return iss
}

func newGatewayFixture(t *testing.T, mutate ...func(*GatewayServiceOptions)) *gatewayFixture {
	t.Helper()
	f := &gatewayFixture{
		users:   memstore.NewUserStore(nil),
		tickets: authmocks.NewStubTicketValidator("ST-1", "abc12", "CMPT-474", "MATH100"),
		tokens:  newJWTIssuer(t),
		captcha: &authmocks.StubChallengeVerifier{Accept: []string{goodCaptcha}},
	}
	opts := GatewayServiceOptions{
		Tickets:       f.tickets,
		Users:         f.users,
		Tokens:        f.tokens,
		Locker:        memstore.NewKeyedLocker(),
		Challenge:     f.captcha,
		Hasher:        authmocks.PlainHasher{},
		LegacyEnabled: true,
		ElevationCode: testCode,
	}
	for _, m := range mutate {
		m(&opts)
	}
	svc, err := NewGatewayService(opts)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestNewGatewayService_Validation(t *testing.T) {
	_, err := NewGatewayService(GatewayServiceOptions{})
	assert.Error(t, err)

	base := GatewayServiceOptions{
		Tickets:       &authmocks.StubTicketValidator{},
		Users:         memstore.NewUserStore(nil),
		Tokens:        &authmocks.StaticTokenIssuer{},
		Locker:        memstore.NewKeyedLocker(),
		ElevationCode: testCode,
	}
	_, err = NewGatewayService(base)
	assert.NoError(t, err)

	legacy := base
	legacy.LegacyEnabled = true
	_, err = NewGatewayService(legacy)
	assert.Error(t, err, "legacy needs challenge and hasher")

	noCode := base
	noCode.ElevationCode = ""
	_, err = NewGatewayService(noCode)
	assert.Error(t, err)
}

func TestLoginWithTicket_NewIdentity(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	res, err := f.svc.LoginWithTicket(ctx, TicketLoginInput{Referrer: testReferrer, Ticket: "ST-1"})
	require.NoError(t, err)
	assert.Equal(t, "abc12", res.Identity)
	assert.Equal(t, domainauth.RoleStudent, res.Role)
	assert.Equal(t, []string{"CMPT-474", "MATH100"}, res.Courses)
	assert.NotEmpty(t, res.Token)

	assert.Equal(t, 1, f.users.Len())
	u, err := f.users.Get(ctx, "abc12")
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleStudent, u.Role)

	assert.Equal(t, []string{testReferrer}, f.tickets.Services(), "referrer echoed unchanged")

	claims, err := f.svc.Introspect(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, "abc12", claims.Identity)
}

func TestLoginWithTicket_ExistingMentorKeepsStoredRole(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	_, err := f.users.Create(ctx, domainauth.NewUser{Identity: "abc12", Role: domainauth.RoleMentor})
	require.NoError(t, err)

	res, err := f.svc.LoginWithTicket(ctx, TicketLoginInput{Referrer: testReferrer, Ticket: "ST-1"})
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleMentor, res.Role)

	claims, err := f.tokens.Validate(res.Token)
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleMentor, claims.Role)
	assert.Equal(t, 1, f.users.Len())
}

func TestLoginWithTicket_RepeatLoginCreatesOneRecord(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.LoginWithTicket(ctx, TicketLoginInput{Referrer: testReferrer, Ticket: "ST-1"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, f.users.Len())
}

func TestLoginWithTicket_MissingInput(t *testing.T) {
	f := newGatewayFixture(t)

	for _, in := range []TicketLoginInput{
		{Referrer: testReferrer},
		{Ticket: "ST-1"},
		{Referrer: "  ", Ticket: "ST-1"},
	} {
		_, err := f.svc.LoginWithTicket(context.Background(), in)
		assert.True(t, apperrors.IsValidation(err), "%+v", in)
	}
	assert.Empty(t, f.tickets.Services(), "provider never called")
}

func TestLoginWithTicket_ProviderRejects(t *testing.T) {
	f := newGatewayFixture(t)
	f.tickets.Results["ST-staff"] = domainauth.TicketValidation{Error: "Not a student"}

	_, err := f.svc.LoginWithTicket(context.Background(), TicketLoginInput{Referrer: testReferrer, Ticket: "ST-staff"})
	require.Error(t, err)
	assert.True(t, apperrors.IsUnauthorized(err))
	assert.Equal(t, "Not a student", apperrors.PublicMessage(err, ""))
	assert.Zero(t, f.users.Len())
}

func TestLoginWithTicket_StoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockUserStore(ctrl)
	store.EXPECT().Exists(gomock.Any(), "abc12").Return(false, nil)
	store.EXPECT().Create(gomock.Any(), domainauth.NewUser{Identity: "abc12", Role: domainauth.RoleStudent}).
		Return(false, errors.New("connection refused"))

	f := newGatewayFixture(t, func(o *GatewayServiceOptions) { o.Users = store })

	_, err := f.svc.LoginWithTicket(context.Background(), TicketLoginInput{Referrer: testReferrer, Ticket: "ST-1"})
	assert.True(t, apperrors.IsInternal(err))
	assert.NotContains(t, apperrors.PublicMessage(err, ""), "connection refused")
}

func TestLoginWithTicket_RoleComesFromStoreAfterCreate(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockUserStore(ctrl)
	gomock.InOrder(
		store.EXPECT().Exists(gomock.Any(), "abc12").Return(false, nil),
		store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(false, nil),
		store.EXPECT().Get(gomock.Any(), "abc12").Return(domainauth.User{Identity: "abc12", Role: domainauth.RoleMentor}, nil),
	)

	f := newGatewayFixture(t, func(o *GatewayServiceOptions) { o.Users = store })

	res, err := f.svc.LoginWithTicket(context.Background(), TicketLoginInput{Referrer: testReferrer, Ticket: "ST-1"})
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleMentor, res.Role)
}

func TestLoginWithCredentials(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()
	_, err := f.users.Create(ctx, domainauth.NewUser{Identity: "legacy1", AuthHash: "plain:pw"})
	require.NoError(t, err)
	_, err = f.users.Create(ctx, domainauth.NewUser{Identity: "casuser"})
	require.NoError(t, err)

	t.Run("success", func(t *testing.T) {
		res, err := f.svc.LoginWithCredentials(ctx, CredentialsInput{
			Username: "legacy1", Password: "pw", CaptchaResponse: goodCaptcha, Referrer: testReferrer,
		})
		require.NoError(t, err)
		assert.Equal(t, domainauth.RoleStudent, res.Role)
		assert.NotEmpty(t, res.Token)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := f.svc.LoginWithCredentials(ctx, CredentialsInput{Username: "legacy1", Password: "pw"})
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("captcha fails", func(t *testing.T) {
		_, err := f.svc.LoginWithCredentials(ctx, CredentialsInput{
			Username: "legacy1", Password: "pw", CaptchaResponse: "bot",
		})
		assert.True(t, apperrors.IsChallenge(err))
		assert.Equal(t, "Invalid captcha", apperrors.PublicMessage(err, ""))
	})

	t.Run("unknown user and wrong password look the same", func(t *testing.T) {
		_, errUnknown := f.svc.LoginWithCredentials(ctx, CredentialsInput{
			Username: "nobody", Password: "pw", CaptchaResponse: goodCaptcha,
		})
		_, errWrong := f.svc.LoginWithCredentials(ctx, CredentialsInput{
			Username: "legacy1", Password: "nope", CaptchaResponse: goodCaptcha,
		})
		_, errNoHash := f.svc.LoginWithCredentials(ctx, CredentialsInput{
			Username: "casuser", Password: "", CaptchaResponse: goodCaptcha,
		})
		assert.True(t, apperrors.IsUnauthorized(errUnknown))
		assert.True(t, apperrors.IsUnauthorized(errWrong))
		assert.Equal(t, errUnknown.Error(), errWrong.Error())
		assert.True(t, apperrors.IsValidation(errNoHash))
	})
}

func TestLoginWithCredentials_Disabled(t *testing.T) {
	f := newGatewayFixture(t, func(o *GatewayServiceOptions) { o.LegacyEnabled = false })
	_, err := f.svc.LoginWithCredentials(context.Background(), CredentialsInput{
		Username: "legacy1", Password: "pw", CaptchaResponse: goodCaptcha,
	})
	assert.True(t, apperrors.IsValidation(err))
	assert.Zero(t, f.captcha.Calls)
}

func TestSignup(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()
	in := CredentialsInput{Username: "newbie", Password: "pw", CaptchaResponse: goodCaptcha, Referrer: testReferrer}

	res, err := f.svc.Signup(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "newbie", res.Identity)
	assert.Equal(t, domainauth.RoleStudent, res.Role)

	u, err := f.users.Get(ctx, "newbie")
	require.NoError(t, err)
	assert.Equal(t, "plain:pw", u.AuthHash)

	_, err = f.svc.Introspect(ctx, res.Token)
	assert.NoError(t, err, "signup logs the user in")

	_, err = f.svc.Signup(ctx, in)
	assert.True(t, apperrors.IsConflict(err))
	assert.Equal(t, "User already exists", apperrors.PublicMessage(err, ""))

	login, err := f.svc.LoginWithCredentials(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "newbie", login.Identity)
}

func TestSignup_Rejections(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	_, err := f.svc.Signup(ctx, CredentialsInput{Username: "x", Password: "pw"})
	assert.True(t, apperrors.IsValidation(err))

	_, err = f.svc.Signup(ctx, CredentialsInput{Username: "x", Password: strings.Repeat("p", 73), CaptchaResponse: goodCaptcha})
	assert.True(t, apperrors.IsValidation(err))

	_, err = f.svc.Signup(ctx, CredentialsInput{Username: "x", Password: "pw", CaptchaResponse: "bot"})
	assert.True(t, apperrors.IsChallenge(err))
	assert.Zero(t, f.users.Len())
}

func TestSignup_StoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockUserStore(ctrl)
	store.EXPECT().Exists(gomock.Any(), "newbie").Return(false, nil)
	store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(false, errors.New("disk full"))

	f := newGatewayFixture(t, func(o *GatewayServiceOptions) { o.Users = store })
	_, err := f.svc.Signup(context.Background(), CredentialsInput{Username: "newbie", Password: "pw", CaptchaResponse: goodCaptcha})
	assert.True(t, apperrors.IsInternal(err))
}

func TestSignup_RacedCreateIsConflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockUserStore(ctrl)
	store.EXPECT().Exists(gomock.Any(), "newbie").Return(false, nil)
	store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(false, nil)

	f := newGatewayFixture(t, func(o *GatewayServiceOptions) { o.Users = store })
	_, err := f.svc.Signup(context.Background(), CredentialsInput{Username: "newbie", Password: "pw", CaptchaResponse: goodCaptcha})
	assert.True(t, apperrors.IsConflict(err))
}

func TestSignup_ChallengeVerifierSeesReferrer(t *testing.T) {
	ctrl := gomock.NewController(t)
	verifier := mocks.NewMockChallengeVerifier(ctrl)
	verifier.EXPECT().Verify(gomock.Any(), "resp", "https://evil.example").Return(false)

	f := newGatewayFixture(t, func(o *GatewayServiceOptions) { o.Challenge = verifier })
	_, err := f.svc.Signup(context.Background(), CredentialsInput{
		Username: "newbie", Password: "pw", CaptchaResponse: "resp", Referrer: "https://evil.example",
	})
	assert.True(t, apperrors.IsChallenge(err))
}

func TestIntrospect(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	res, err := f.svc.LoginWithTicket(ctx, TicketLoginInput{Referrer: testReferrer, Ticket: "ST-1"})
	require.NoError(t, err)

	t.Run("garbage token", func(t *testing.T) {
		_, err := f.svc.Introspect(ctx, "not-a-token")
		assert.True(t, apperrors.IsTokenInvalid(err))
	})

	t.Run("unknown identity", func(t *testing.T) {
		tok, err := f.tokens.Issue("ghost", domainauth.RoleStudent)
		require.NoError(t, err)
		_, err = f.svc.Introspect(ctx, tok)
		assert.True(t, apperrors.IsTokenInvalid(err))
	})

	t.Run("stale role after elevation", func(t *testing.T) {
		mentor := domainauth.RoleMentor
		_, err := f.users.Update(ctx, "abc12", domainauth.UserUpdate{Role: &mentor})
		require.NoError(t, err)

		_, err = f.svc.Introspect(ctx, res.Token)
		require.Error(t, err)
		assert.True(t, apperrors.IsTokenInvalid(err))
		assert.Equal(t, "Unauthorized", apperrors.PublicMessage(err, ""))
	})
}

func TestIntrospect_StoreErrorCollapses(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockUserStore(ctrl)
	store.EXPECT().Get(gomock.Any(), "abc12").Return(domainauth.User{}, errors.New("timeout"))

	f := newGatewayFixture(t, func(o *GatewayServiceOptions) { o.Users = store })
	tok, err := f.tokens.Issue("abc12", domainauth.RoleStudent)
	require.NoError(t, err)

	_, err = f.svc.Introspect(context.Background(), tok)
	assert.True(t, apperrors.IsTokenInvalid(err))
}

func loginStudent(t *testing.T, f *gatewayFixture) domainauth.Claims {
	t.Helper()
	res, err := f.svc.LoginWithTicket(context.Background(), TicketLoginInput{Referrer: testReferrer, Ticket: "ST-1"})
	require.NoError(t, err)
	claims, err := f.svc.Authenticate(res.Token)
	require.NoError(t, err)
	return claims
}

func TestApplyMentor_Success(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()
	claims := loginStudent(t, f)

	res, err := f.svc.ApplyMentor(ctx, claims, testCode)
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleMentor, res.Role)

	u, err := f.users.Get(ctx, "abc12")
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleMentor, u.Role)

	_, err = f.svc.Introspect(ctx, res.Token)
	assert.NoError(t, err, "reissued token matches store")
}

func TestApplyMentor_TwiceIsAlreadyMentor(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()
	claims := loginStudent(t, f)

	_, err := f.svc.ApplyMentor(ctx, claims, testCode)
	require.NoError(t, err)

	_, err = f.svc.ApplyMentor(ctx, claims, testCode)
	assert.True(t, apperrors.IsConflict(err))
	assert.Equal(t, "Already a mentor", apperrors.PublicMessage(err, ""))
}

func TestApplyMentor_ConcurrentGrantsOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := memstore.NewUserStore(nil)
	store := mocks.NewMockUserStore(ctrl)
	store.EXPECT().Exists(gomock.Any(), gomock.Any()).DoAndReturn(inner.Exists).AnyTimes()
	store.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(inner.Create).AnyTimes()
	store.EXPECT().Get(gomock.Any(), gomock.Any()).DoAndReturn(inner.Get).AnyTimes()
	store.EXPECT().Update(gomock.Any(), "abc12", gomock.Any()).DoAndReturn(inner.Update).Times(1)

	f := newGatewayFixture(t, func(o *GatewayServiceOptions) { o.Users = store })
	claims := loginStudent(t, f)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.ApplyMentor(context.Background(), claims, testCode)
		}()
	}
	wg.Wait()
}

func TestApplyMentor_WrongCodeLeavesStudent(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()
	claims := loginStudent(t, f)

	_, err := f.svc.ApplyMentor(ctx, claims, "guess")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "Incorrect mentor application code", apperrors.PublicMessage(err, ""))

	u, err := f.users.Get(ctx, "abc12")
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleStudent, u.Role)
}

func TestApplyMentor_EchoCode(t *testing.T) {
	f := newGatewayFixture(t, func(o *GatewayServiceOptions) { o.EchoElevationCode = true })
	claims := loginStudent(t, f)

	_, err := f.svc.ApplyMentor(context.Background(), claims, "guess")
	assert.Equal(t, `Incorrect mentor application code. Got "guess"`, apperrors.PublicMessage(err, ""))
}

func TestApplyMentor_MissingCode(t *testing.T) {
	f := newGatewayFixture(t)
	claims := loginStudent(t, f)

	_, err := f.svc.ApplyMentor(context.Background(), claims, "")
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "applicationCode", apperrors.GetField(err))
}

func TestApplyMentor_StoreIsSourceOfTruth(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	_, err := f.users.Create(ctx, domainauth.NewUser{Identity: "abc12", Role: domainauth.RoleMentor})
	require.NoError(t, err)

	// Token claims say student, store says mentor.
	tok, err := f.tokens.Issue("abc12", domainauth.RoleStudent)
	require.NoError(t, err)
	claims, err := f.svc.Authenticate(tok)
	require.NoError(t, err)

	_, err = f.svc.ApplyMentor(ctx, claims, testCode)
	assert.True(t, apperrors.IsConflict(err))
}

func TestApplyMentor_UnknownUser(t *testing.T) {
	f := newGatewayFixture(t)
	_, err := f.svc.ApplyMentor(context.Background(), domainauth.Claims{Identity: "ghost", Role: domainauth.RoleStudent}, testCode)
	assert.True(t, apperrors.IsTokenInvalid(err))
}

func TestApplyMentor_UpdateFailureIsInternal(t *testing.T) {
	tests := []struct {
		name    string
		updated bool
		err     error
	}{
		{"store error", false, errors.New("write failed")},
		{"row vanished", false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			store := mocks.NewMockUserStore(ctrl)
			store.EXPECT().Get(gomock.Any(), "abc12").Return(domainauth.User{Identity: "abc12", Role: domainauth.RoleStudent}, nil)
			store.EXPECT().Update(gomock.Any(), "abc12", gomock.Any()).Return(tt.updated, tt.err).Times(1)

			f := newGatewayFixture(t, func(o *GatewayServiceOptions) { o.Users = store })
			_, err := f.svc.ApplyMentor(context.Background(), domainauth.Claims{Identity: "abc12", Role: domainauth.RoleStudent}, testCode)
			require.Error(t, err)
			assert.True(t, apperrors.IsInternal(err))
			assert.Equal(t, "Failed to give abc12 mentor role", apperrors.PublicMessage(err, ""))
		})
	}
}

func TestAuthenticate(t *testing.T) {
	f := newGatewayFixture(t)
	_, err := f.svc.Authenticate("")
	assert.True(t, apperrors.IsTokenInvalid(err))
	assert.ErrorIs(t, err, domainauth.ErrTokenInvalid)
}
