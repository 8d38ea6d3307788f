package extract

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// LoginForm locates the login controls on a page as CSS selectors usable by
// the browser layer.
type LoginForm struct {
	Form     string
	Username string
	Password string
	Submit   string
}

const siteSubmitCandidates = `input[type="submit"], button[type="submit"], input.login_btn`

// LoginFormChain discovers the login form: the site's known structural
// markers are tried first, generic password-input heuristics second.
func LoginFormChain() *Chain[LoginForm] {
	return NewChain[LoginForm](siteLoginForm{}, genericLoginForm{})
}

// siteLoginForm matches the platform's main login form by name.
type siteLoginForm struct{}

func (siteLoginForm) Name() string { return "site-login-form" }

func (siteLoginForm) Applies(doc *goquery.Document) bool {
	return doc.Find(`form[name="mainLoginForm"]`).Length() > 0 &&
		doc.Find(`input[name="m_id"]`).Length() > 0 &&
		doc.Find(`input[name="m_pwd"]`).Length() > 0
}

func (siteLoginForm) Extract(_ *goquery.Document) (LoginForm, error) {
	return LoginForm{
		Form:     `form[name="mainLoginForm"]`,
		Username: `input[name="m_id"]`,
		Password: `input[name="m_pwd"]`,
		Submit:   siteSubmitCandidates,
	}, nil
}

// genericLoginForm falls back to the first form holding a password input.
type genericLoginForm struct{}

func (genericLoginForm) Name() string { return "generic-login-form" }

func (genericLoginForm) Applies(doc *goquery.Document) bool {
	return doc.Find(`form input[type="password"]`).Length() > 0
}

func (genericLoginForm) Extract(doc *goquery.Document) (LoginForm, error) {
	var form LoginForm
	found := false
	doc.Find("form").EachWithBreak(func(i int, f *goquery.Selection) bool {
		pw := f.Find(`input[type="password"]`).First()
		if pw.Length() == 0 {
			return true
		}
		formSel := formSelector(f, i)
		form = LoginForm{
			Form:     formSel,
			Username: formSel + " " + usernameSelector(f),
			Password: formSel + " " + inputSelector(pw, `input[type="password"]`),
			Submit:   siteSubmitCandidates,
		}
		found = true
		return false
	})
	if !found {
		return LoginForm{}, fmt.Errorf("password form vanished from snapshot: %w", ErrNoStrategy)
	}
	return form, nil
}

func formSelector(f *goquery.Selection, index int) string {
	if id, ok := f.Attr("id"); ok && id != "" {
		return "form#" + id
	}
	if name, ok := f.Attr("name"); ok && name != "" {
		return fmt.Sprintf(`form[name="%s"]`, name)
	}
	return fmt.Sprintf("form:nth-of-type(%d)", index+1)
}

func usernameSelector(f *goquery.Selection) string {
	for _, sel := range []string{
		`input[type="text"]`,
		`input[type="email"]`,
		`input:not([type])`,
	} {
		if in := f.Find(sel).First(); in.Length() > 0 {
			return inputSelector(in, sel)
		}
	}
	return `input[type="text"]`
}

func inputSelector(in *goquery.Selection, fallback string) string {
	if name, ok := in.Attr("name"); ok && name != "" {
		return fmt.Sprintf(`input[name="%s"]`, name)
	}
	if id, ok := in.Attr("id"); ok && id != "" {
		return "input#" + id
	}
	return fallback
}
