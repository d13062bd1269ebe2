package site

import (
	"context"
	"errors"
	"net/url"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contractor-cli/internal/config"
	"github.com/sells-group/contractor-cli/internal/contractor"
	"github.com/sells-group/contractor-cli/internal/scraper"
	"github.com/sells-group/contractor-cli/internal/session"
)

var (
	// ErrLoginUnconfirmed means the login form was submitted but the
	// post-login marker never appeared.
	ErrLoginUnconfirmed = errors.New("site: login not confirmed")
	// ErrLoginRejected means the site showed its login failure marker.
	ErrLoginRejected = errors.New("site: login rejected")
	// ErrNoCredentials means no username and password are configured for
	// the site.
	ErrNoCredentials = errors.New("site: no credentials configured")
)

// AuthAdapter logs into a member-only site before searching it.
type AuthAdapter struct {
	*SelectorAdapter
	cred            config.Credential
	allowUnverified bool
}

// NewAuthAdapter creates an adapter for a site behind a login form. When
// allowUnverified is set an unconfirmed login only logs a warning.
func NewAuthAdapter(s Site, defaultLocation scraper.Location, cred config.Credential, allowUnverified bool) *AuthAdapter {
	return &AuthAdapter{
		SelectorAdapter: NewSelectorAdapter(s, scraper.Authenticated, defaultLocation),
		cred:            cred,
		allowUnverified: allowUnverified,
	}
}

// Scrape implements scraper.Adapter.
func (a *AuthAdapter) Scrape(ctx context.Context, sess session.Session, loc scraper.Location) ([]contractor.RawRecord, error) {
	if err := a.login(ctx, sess); err != nil {
		return nil, err
	}
	return a.search(ctx, sess, loc)
}

func (a *AuthAdapter) login(ctx context.Context, sess session.Session) error {
	if a.cred.Username == "" || a.cred.Password == "" {
		return eris.Wrapf(ErrNoCredentials, "site: %s", a.site.Name)
	}
	l := a.site.Login
	formSel := l.Form
	if formSel == "" {
		formSel = "form"
	}
	userField := l.UsernameField
	if userField == "" {
		userField = "username"
	}
	passField := l.PasswordField
	if passField == "" {
		passField = "password"
	}

	page, err := sess.Get(ctx, l.URL)
	if err != nil {
		return eris.Wrapf(err, "site: %s login page", a.site.Name)
	}
	if page.Challenge != session.ChallengeNone {
		return eris.Errorf("site: %s login page is behind a %s challenge", a.site.Name, page.Challenge)
	}

	form := page.Doc.Find(formSel).First()
	if form.Length() == 0 {
		return eris.Errorf("site: %s login form %q not found", a.site.Name, formSel)
	}
	action := page.URL
	if href, ok := form.Attr("action"); ok && href != "" {
		action = page.Resolve(href)
	}

	values := url.Values{}
	for k, v := range session.HiddenFields(page.Doc, formSel) {
		values.Set(k, v)
	}
	values.Set(userField, a.cred.Username)
	values.Set(passField, a.cred.Password)

	resp, err := sess.PostForm(ctx, action, values)
	if err != nil {
		return eris.Wrapf(err, "site: %s submit login", a.site.Name)
	}

	if l.FailureSelector != "" && resp.Doc.Find(l.FailureSelector).Length() > 0 {
		return eris.Wrapf(ErrLoginRejected, "site: %s: %s", a.site.Name, resp.Text(l.FailureSelector))
	}
	if l.SuccessSelector != "" && resp.Doc.Find(l.SuccessSelector).Length() > 0 {
		a.log.Info("logged in")
		return nil
	}
	if a.allowUnverified {
		a.log.Warn("login not confirmed, continuing", zap.String("success_selector", l.SuccessSelector))
		return nil
	}
	return eris.Wrapf(ErrLoginUnconfirmed, "site: %s", a.site.Name)
}
