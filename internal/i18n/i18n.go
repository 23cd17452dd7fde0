package i18n

import (
	"embed"
	"fmt"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// Message IDs used across the form.
const (
	NameRequired      = "name_required"
	NameTooShort      = "name_too_short"
	NamePattern       = "name_pattern"
	EmailRequired     = "email_required"
	EmailPattern      = "email_pattern"
	PhoneRequired     = "phone_required"
	PhoneDigits       = "phone_digits"
	ChallengeRequired = "challenge_required"
	ChallengeMismatch = "challenge_mismatch"
	ConfirmRequired   = "confirm_required"
	ChallengePrompt   = "challenge_prompt"
	FormSuccess       = "form_success"
	FormError         = "form_error"
	SubmitFailed      = "submit_failed"
	SubmitIdle        = "submit_idle"
	SubmitBusy        = "submit_busy"
)

//go:embed locales/*.toml
var embedded embed.FS

type Translations struct {
	bundle   *i18n.Bundle
	localize *i18n.Localizer
	lang     string
}

// NewTranslations builds the bundle from the English defaults, the embedded
// catalogs and any active.*.toml file found in localesDir.
func NewTranslations(lang string, localesDir string) (*Translations, error) {
	if lang == "" {
		return nil, fmt.Errorf("language must not be empty")
	}
	if _, err := language.Parse(lang); err != nil {
		return nil, fmt.Errorf("invalid language %q: %w", lang, err)
	}

	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)
	bundle.MustParseMessageFileBytes([]byte(defaultMessages), "default.en.toml")

	entries, err := embedded.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("error reading embedded locales: %w", err)
	}
	for _, e := range entries {
		buf, err := embedded.ReadFile("locales/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("error reading embedded locale %s: %w", e.Name(), err)
		}
		if _, err := bundle.ParseMessageFileBytes(buf, e.Name()); err != nil {
			return nil, fmt.Errorf("error parsing embedded locale %s: %w", e.Name(), err)
		}
	}

	if localesDir != "" {
		files, err := filepath.Glob(filepath.Join(localesDir, "active.*.toml"))
		if err != nil {
			return nil, fmt.Errorf("error reading locales: %w", err)
		}
		for _, file := range files {
			if _, err := bundle.LoadMessageFile(file); err != nil {
				return nil, fmt.Errorf("error loading locale file %s: %w", file, err)
			}
		}
	}

	t := &Translations{bundle: bundle}
	if err := t.SetLanguage(lang); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Translations) SetLanguage(lang string) error {
	for _, tag := range t.bundle.LanguageTags() {
		if tag.String() == lang {
			t.localize = i18n.NewLocalizer(t.bundle, lang)
			t.lang = lang
			return nil
		}
	}
	return fmt.Errorf("language '%s' not supported", lang)
}

func (t *Translations) Language() string {
	return t.lang
}

// Message localizes id. Missing ids render as a visible marker rather than
// failing the caller.
func (t *Translations) Message(id string, templateData map[string]any) string {
	localized, err := t.localize.Localize(&i18n.LocalizeConfig{
		MessageID:    id,
		TemplateData: templateData,
	})
	if err != nil {
		return "Translation missing: " + id
	}
	return localized
}

var defaultMessages = `
[name_required]
other = "Please enter your name."

[name_too_short]
other = "Name must be at least {{.Min}} characters."

[name_pattern]
other = "Name can only contain letters, spaces, hyphens, and apostrophes."

[email_required]
other = "Please enter your email address."

[email_pattern]
other = "Please enter a valid email address."

[phone_required]
other = "Please enter your phone number."

[phone_digits]
other = "Phone number must be between {{.Min}}-{{.Max}} digits."

[challenge_required]
other = "Please solve the math problem."

[challenge_mismatch]
other = "Incorrect answer. Please try again."

[confirm_required]
other = "Please confirm you are a real person."

[challenge_prompt]
other = "What is {{.Question}}?"

[form_success]
other = "Thank you! We'll contact you within 24 hours."

[form_error]
other = "Please fix the errors below and try again."

[submit_failed]
other = "We couldn't send your request. Please try again in a few minutes."

[submit_idle]
other = "Submit"

[submit_busy]
other = "Sending..."
`
