package service

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"anoa.com/alumnidirectory/internal/access"
	"anoa.com/alumnidirectory/internal/entity"
	alumniRepo "anoa.com/alumnidirectory/internal/modules/alumni/repository"
	approvalService "anoa.com/alumnidirectory/internal/modules/approval/service"
	"anoa.com/alumnidirectory/internal/modules/auth/dto"
	botService "anoa.com/alumnidirectory/internal/modules/botcheck/service"
	notifDto "anoa.com/alumnidirectory/internal/modules/notification/dto"
	"anoa.com/alumnidirectory/pkg/apperror"
	"anoa.com/alumnidirectory/pkg/ratelimiter"
	"github.com/google/uuid"
)

const testAdmin = "sharmanitish6116@gmail.com"

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*entity.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*entity.User)}
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.ErrNotFound
}

func (r *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[entity.NormalizeEmail(email)]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, apperror.ErrNotFound
}

func (r *fakeUserRepo) FindOrCreateByEmail(ctx context.Context, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email = entity.NormalizeEmail(email)
	u, ok := r.users[email]
	if !ok {
		u = &entity.User{ID: uuid.New(), Email: email, CreatedAt: time.Now()}
		r.users[email] = u
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) TouchSignIn(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			u.LastSignInAt = &at
		}
	}
	return nil
}

// fakeAlumniRepo implements the calls the sign-in flow makes; anything else panics.
type fakeAlumniRepo struct {
	alumniRepo.AlumniRepository
	mu        sync.Mutex
	profiles  []*entity.AlumniProfile
	createErr error
}

func (r *fakeAlumniRepo) find(match func(p *entity.AlumniProfile) bool) (*entity.AlumniProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.profiles {
		if match(p) {
			copied := *p
			return &copied, nil
		}
	}
	return nil, apperror.ErrNotFound
}

func (r *fakeAlumniRepo) FindByEmail(ctx context.Context, email string) (*entity.AlumniProfile, error) {
	return r.find(func(p *entity.AlumniProfile) bool { return p.Email == entity.NormalizeEmail(email) })
}

func (r *fakeAlumniRepo) FindByPhone(ctx context.Context, phone string) (*entity.AlumniProfile, error) {
	return r.find(func(p *entity.AlumniProfile) bool { return p.Phone != nil && *p.Phone == phone })
}

func (r *fakeAlumniRepo) FindByUserIDOrEmail(ctx context.Context, userID uuid.UUID, email string) (*entity.AlumniProfile, error) {
	return r.find(func(p *entity.AlumniProfile) bool {
		return p.UserID == userID || p.Email == entity.NormalizeEmail(email)
	})
}

func (r *fakeAlumniRepo) Create(ctx context.Context, profile *entity.AlumniProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	copied := *profile
	r.profiles = append(r.profiles, &copied)
	return nil
}

type stubBotCheck struct {
	reject  bool
	actions []string
}

func (s *stubBotCheck) Verify(ctx context.Context, token, action, remoteIP string) (*botService.Result, error) {
	s.actions = append(s.actions, action)
	if s.reject {
		return nil, &botService.Rejection{Reason: "we could not verify you are human, please try again", Score: 0.1, Action: action}
	}
	return &botService.Result{Score: 0.9, Action: action}, nil
}

type stubLimiter struct {
	blocked bool
}

func (l *stubLimiter) Allow(ctx context.Context, key string) error {
	if l.blocked {
		return &ratelimiter.RateLimitError{Message: "too many requests", RetryAfter: time.Minute}
	}
	return nil
}

type sentLink struct {
	to     string
	link   string
	signup bool
}

type captureMailer struct {
	mu    sync.Mutex
	links []sentLink
	err   error
}

func (m *captureMailer) SendMagicLink(to, link string, signup bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.links = append(m.links, sentLink{to: to, link: link, signup: signup})
	return nil
}

func (m *captureMailer) SendWelcome(to, name, batch, directoryURL string) error {
	return nil
}

func (m *captureMailer) lastToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.links) == 0 {
		t.Fatalf("no magic link sent")
	}
	parsed, err := url.Parse(m.links[len(m.links)-1].link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	return parsed.Query().Get("token")
}

type nopDispatcher struct {
	events []notifDto.WelcomeEmailEvent
}

func (d *nopDispatcher) DispatchWelcome(ctx context.Context, event notifDto.WelcomeEmailEvent) error {
	d.events = append(d.events, event)
	return nil
}

type fixture struct {
	svc     *authService
	users   *fakeUserRepo
	alumni  *fakeAlumniRepo
	bot     *stubBotCheck
	limiter *stubLimiter
	mailer  *captureMailer
	signups SignupCache
}

func newFixture() *fixture {
	f := &fixture{
		users:   newFakeUserRepo(),
		alumni:  &fakeAlumniRepo{},
		bot:     &stubBotCheck{},
		limiter: &stubLimiter{},
		mailer:  &captureMailer{},
		signups: NewMemorySignupCache(),
	}
	admins := access.NewAdminSet([]string{testAdmin})
	approval := approvalService.NewApprovalService(f.alumni, admins, &nopDispatcher{}, nil, nil)
	f.svc = NewAuthService(
		f.users,
		f.alumni,
		approval,
		f.bot,
		f.limiter,
		f.mailer,
		f.signups,
		NewMemoryUsedTokenStore(),
		NewTokenManager("test-secret", 15*time.Minute, time.Hour),
		admins,
		Options{BaseURL: "https://alumni.example.com", MagicLinkTTL: 15 * time.Minute, SignupCacheTTL: 24 * time.Hour},
	).(*authService)
	return f
}

func ashaSignup() dto.SignupRequest {
	return dto.SignupRequest{
		Email:          "Asha@Example.com",
		FullName:       "Asha Rao",
		Phone:          "+91 98765 43210",
		RollNumber:     "JNV123",
		BatchRange:     "2015-2022",
		RecaptchaToken: "tok",
	}
}

func TestSignupThenConfirmCreatesPendingApplication(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	res, err := f.svc.Signup(ctx, ashaSignup(), "10.0.0.1")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if res.Email != "asha@example.com" {
		t.Fatalf("expected normalized email, got %q", res.Email)
	}
	if len(f.bot.actions) != 1 || f.bot.actions[0] != botService.ActionSignup {
		t.Fatalf("expected signup bot check, got %v", f.bot.actions)
	}
	if !f.mailer.links[0].signup || !strings.HasPrefix(f.mailer.links[0].link, "https://alumni.example.com/auth/confirm?token=") {
		t.Fatalf("unexpected link %+v", f.mailer.links[0])
	}

	auth, err := f.svc.Confirm(ctx, f.mailer.lastToken(t))
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if auth.Status != entity.StatusPending || !auth.Created || auth.IsAdmin {
		t.Fatalf("unexpected confirm result %+v", auth)
	}
	if auth.AccessToken == "" || auth.TokenType != "Bearer" {
		t.Fatalf("expected session token")
	}
	p := auth.Profile
	if p.FullName != "Asha Rao" || p.BatchStart != 2015 || p.BatchEnd != 2022 || *p.RollNumber != "JNV123" {
		t.Fatalf("unexpected profile %+v", p)
	}
	if p.Phone == nil || *p.Phone != "+919876543210" {
		t.Fatalf("expected normalized phone, got %v", p.Phone)
	}

	claims, err := f.svc.tokens.ParseSession(auth.AccessToken)
	if err != nil {
		t.Fatalf("parse session: %v", err)
	}
	if claims.Subject != auth.User.ID.String() || claims.Email != "asha@example.com" {
		t.Fatalf("unexpected session claims %+v", claims)
	}
}

func TestConfirmLinkIsSingleUse(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.svc.Signup(ctx, ashaSignup(), ""); err != nil {
		t.Fatalf("signup: %v", err)
	}
	token := f.mailer.lastToken(t)
	if _, err := f.svc.Confirm(ctx, token); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if _, err := f.svc.Confirm(ctx, token); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("expected reused link to be refused, got %v", err)
	}
}

func TestConfirmLinkSurvivesServerError(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.svc.Signup(ctx, ashaSignup(), ""); err != nil {
		t.Fatalf("signup: %v", err)
	}
	token := f.mailer.lastToken(t)

	f.alumni.createErr = errors.New("connection reset by peer")
	_, err := f.svc.Confirm(ctx, token)
	if err == nil || apperror.MapErrorToStatus(err) != http.StatusInternalServerError {
		t.Fatalf("expected internal error, got %v", err)
	}

	f.alumni.createErr = nil
	auth, err := f.svc.Confirm(ctx, token)
	if err != nil {
		t.Fatalf("retry with the same link: %v", err)
	}
	if !auth.Created || auth.Status != entity.StatusPending {
		t.Fatalf("unexpected confirm result %+v", auth)
	}

	if _, err := f.svc.Confirm(ctx, token); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("expected link to be consumed after success, got %v", err)
	}
}

func TestConfirmWithExpiredSignupCacheIsStale(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.svc.Signup(ctx, ashaSignup(), ""); err != nil {
		t.Fatalf("signup: %v", err)
	}
	token := f.mailer.lastToken(t)
	claims, err := f.svc.tokens.ParseMagicLink(token)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	_ = f.signups.Delete(ctx, claims.SignupID)

	_, err = f.svc.Confirm(ctx, token)
	if !errors.Is(err, apperror.ErrStaleSignup) {
		t.Fatalf("expected stale signup, got %v", err)
	}
	if apperror.MapErrorToStatus(err) != 410 {
		t.Fatalf("expected 410 for stale signup")
	}
	if len(f.alumni.profiles) != 0 {
		t.Fatalf("no record may be created")
	}
	if _, err := f.svc.Confirm(ctx, token); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("a stale link stays consumed, got %v", err)
	}
}

func TestPrivilegedSignupIsApproved(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	req := ashaSignup()
	req.Email = testAdmin
	req.FullName = "Nitish Sharma"
	if _, err := f.svc.Signup(ctx, req, ""); err != nil {
		t.Fatalf("signup: %v", err)
	}

	auth, err := f.svc.Confirm(ctx, f.mailer.lastToken(t))
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if auth.Status != entity.StatusApproved || !auth.IsAdmin {
		t.Fatalf("expected approved admin, got %+v", auth)
	}
	if *auth.Profile.ApprovedBy != entity.AutoApprovedBy {
		t.Fatalf("expected auto approval sentinel, got %s", *auth.Profile.ApprovedBy)
	}
}

func TestSignupRejectsRegisteredEmail(t *testing.T) {
	f := newFixture()
	f.alumni.profiles = append(f.alumni.profiles, &entity.AlumniProfile{ID: uuid.New(), Email: "asha@example.com"})

	_, err := f.svc.Signup(context.Background(), ashaSignup(), "")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(f.mailer.links) != 0 {
		t.Fatalf("no link may be sent for a registered email")
	}
}

func TestSignupValidation(t *testing.T) {
	f := newFixture()

	req := ashaSignup()
	req.BatchRange = "2022-2015"
	req.Email = "not-an-email"
	_, err := f.svc.Signup(context.Background(), req, "")

	var validationErr *apperror.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if validationErr.Fields["batch_range"] == "" || validationErr.Fields["email"] == "" {
		t.Fatalf("expected batch_range and email messages, got %+v", validationErr.Fields)
	}
	if len(f.bot.actions) != 0 {
		t.Fatalf("validation must run before the bot check")
	}
}

func TestSignupBotRejectionBlocksEverything(t *testing.T) {
	f := newFixture()
	f.bot.reject = true

	_, err := f.svc.Signup(context.Background(), ashaSignup(), "")
	var rejection *botService.Rejection
	if !errors.As(err, &rejection) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if len(f.mailer.links) != 0 {
		t.Fatalf("no link may be sent after rejection")
	}
}

func TestSignupRateLimited(t *testing.T) {
	f := newFixture()
	f.limiter.blocked = true

	_, err := f.svc.Signup(context.Background(), ashaSignup(), "")
	if !errors.Is(err, apperror.ErrRateLimitExceeded) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
}

func TestSignupMailFailureIsRemoteServiceError(t *testing.T) {
	f := newFixture()
	f.mailer.err = errors.New("dial tcp: timeout")

	_, err := f.svc.Signup(context.Background(), ashaSignup(), "")
	if !errors.Is(err, apperror.ErrRemoteService) {
		t.Fatalf("expected remote service error, got %v", err)
	}
	if apperror.MapErrorToStatus(err) != 502 {
		t.Fatalf("expected 502")
	}
}

func TestLoginByPhoneResolvesPendingRecord(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.svc.Signup(ctx, ashaSignup(), ""); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, err := f.svc.Confirm(ctx, f.mailer.lastToken(t)); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	res, err := f.svc.RequestLogin(ctx, dto.LoginRequest{Identifier: "+91 98765-43210", RecaptchaToken: "tok"}, "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Email != "asha@example.com" {
		t.Fatalf("expected phone to resolve to asha@example.com, got %q", res.Email)
	}
	if f.bot.actions[len(f.bot.actions)-1] != botService.ActionLogin {
		t.Fatalf("expected login bot check")
	}

	auth, err := f.svc.Confirm(ctx, f.mailer.lastToken(t))
	if err != nil {
		t.Fatalf("confirm login: %v", err)
	}
	if auth.Status != entity.StatusPending || auth.Created {
		t.Fatalf("unexpected login result %+v", auth)
	}
}

func TestLoginUnknownIdentifierRequiresSignup(t *testing.T) {
	f := newFixture()

	for _, identifier := range []string{"nobody@example.com", "9999999999"} {
		_, err := f.svc.RequestLogin(context.Background(), dto.LoginRequest{Identifier: identifier}, "")
		if !errors.Is(err, apperror.ErrSignupRequired) {
			t.Fatalf("%s: expected signup required, got %v", identifier, err)
		}
	}

	_, err := f.svc.RequestLogin(context.Background(), dto.LoginRequest{Identifier: "asha"}, "")
	if !errors.Is(err, apperror.ErrInvalidInput) {
		t.Fatalf("expected invalid identifier, got %v", err)
	}
}

func TestLoginAdminWithoutProfile(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.svc.RequestLogin(ctx, dto.LoginRequest{Identifier: "SharmaNitish6116@gmail.com"}, ""); err != nil {
		t.Fatalf("login: %v", err)
	}
	auth, err := f.svc.Confirm(ctx, f.mailer.lastToken(t))
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !auth.IsAdmin || auth.Status != entity.StatusUnregistered {
		t.Fatalf("unexpected result %+v", auth)
	}

	me, err := f.svc.Me(ctx, auth.User.ID)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if !me.IsAdmin || me.User.Email != testAdmin {
		t.Fatalf("unexpected me %+v", me)
	}
}

func TestConfirmRejectsGarbageAndSessionTokens(t *testing.T) {
	f := newFixture()

	if _, err := f.svc.Confirm(context.Background(), "garbage"); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	session, _, err := f.svc.tokens.IssueSession(&entity.User{ID: uuid.New(), Email: "asha@example.com"})
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	if _, err := f.svc.Confirm(context.Background(), session); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("session token must not work as a magic link, got %v", err)
	}
}

func TestMeUnknownUser(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.Me(context.Background(), uuid.New()); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}
