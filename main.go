package leadguard

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"github.com/libops/leadguard/internal/challenge"
	"github.com/libops/leadguard/internal/form"
	"github.com/libops/leadguard/internal/guard"
	"github.com/libops/leadguard/internal/helper"
	"github.com/libops/leadguard/internal/i18n"
	logger "github.com/libops/leadguard/internal/log"
	"github.com/libops/leadguard/internal/rules"
	"github.com/libops/leadguard/internal/session"
	"github.com/libops/leadguard/internal/submit"
	"gopkg.in/yaml.v3"
)

const StatsURL = "/leadguard/stats"

type Config struct {
	FormURL           string   `json:"formURL" yaml:"formURL" toml:"formURL"`
	FormTmpl          string   `json:"formTmpl" yaml:"formTmpl" toml:"formTmpl"`
	Language          string   `json:"language" yaml:"language" toml:"language"`
	LocalesDir        string   `json:"localesDir" yaml:"localesDir" toml:"localesDir"`
	RulesFile         string   `json:"rulesFile" yaml:"rulesFile" toml:"rulesFile"`
	MinPhoneDigits    int      `json:"minPhoneDigits" yaml:"minPhoneDigits" toml:"minPhoneDigits"`
	MaxPhoneDigits    int      `json:"maxPhoneDigits" yaml:"maxPhoneDigits" toml:"maxPhoneDigits"`
	MinDwellMs        int64    `json:"minDwellMs" yaml:"minDwellMs" toml:"minDwellMs"`
	ResubmitGapMs     int64    `json:"resubmitGapMs" yaml:"resubmitGapMs" toml:"resubmitGapMs"`
	LatencyMs         int64    `json:"latencyMs" yaml:"latencyMs" toml:"latencyMs"`
	SessionTTL        int64    `json:"sessionTTL" yaml:"sessionTTL" toml:"sessionTTL"`
	SessionCookie     string   `json:"sessionCookie" yaml:"sessionCookie" toml:"sessionCookie"`
	HoneypotName      string   `json:"honeypotName" yaml:"honeypotName" toml:"honeypotName"`
	IPForwardedHeader string   `json:"ipForwardedHeader" yaml:"ipForwardedHeader" toml:"ipForwardedHeader"`
	IPDepth           int      `json:"ipDepth" yaml:"ipDepth" toml:"ipDepth"`
	ExemptIPs         []string `json:"exemptIps" yaml:"exemptIps" toml:"exemptIps"`
	EnableStatsPage   string   `json:"enableStatsPage" yaml:"enableStatsPage" toml:"enableStatsPage"`
	LogLevel          string   `json:"loglevel,omitempty" yaml:"loglevel,omitempty" toml:"loglevel,omitempty"`
}

type LeadGuard struct {
	next       http.Handler
	name       string
	config     *Config
	log        *slog.Logger
	trans      *i18n.Translations
	validator  *form.Validator
	guard      guard.Guard
	generator  *challenge.Generator
	submitter  submit.Submitter
	sessions   *session.Store[*page]
	exemptIps  []*net.IPNet
	tmpl       *template.Template
	checkboxes map[string]bool
}

func CreateConfig() *Config {
	return &Config{
		FormURL:           "/contact",
		FormTmpl:          "",
		Language:          "en",
		MinPhoneDigits:    10,
		MaxPhoneDigits:    helper.MaxPhoneDigits,
		MinDwellMs:        guard.DefaultMinDwell.Milliseconds(),
		ResubmitGapMs:     guard.DefaultMinResubmitGap.Milliseconds(),
		LatencyMs:         submit.DefaultLatency.Milliseconds(),
		SessionTTL:        3600,
		SessionCookie:     "leadguard_session",
		HoneypotName:      "websiteUrl",
		IPForwardedHeader: "",
		IPDepth:           0,
		ExemptIPs:         []string{},
		EnableStatsPage:   "false",
		LogLevel:          "INFO",
	}
}

// LoadConfig reads a .json, .yaml/.yml or .toml file over the defaults.
func LoadConfig(path string) (*Config, error) {
	config := CreateConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read config file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, config)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	case ".toml":
		err = toml.Unmarshal(data, config)
	default:
		return nil, fmt.Errorf("unsupported config format: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to parse config file %s: %w", path, err)
	}

	return config, nil
}

func New(ctx context.Context, next http.Handler, config *Config, name string) (http.Handler, error) {
	return NewLeadGuard(ctx, next, config, name)
}

func NewLeadGuard(ctx context.Context, next http.Handler, config *Config, name string) (*LeadGuard, error) {
	log := logger.New(config.LogLevel)
	log.Debug("Lead guard config", "config", config)

	if config.FormURL == "" || config.FormURL == "/" || !strings.HasPrefix(config.FormURL, "/") {
		return nil, fmt.Errorf("invalid formURL %q. It must be a path below the site root, the default is /contact", config.FormURL)
	}
	config.FormURL = strings.TrimSuffix(config.FormURL, "/")
	if config.HoneypotName == "" {
		return nil, fmt.Errorf("honeypotName must not be empty")
	}
	if config.SessionCookie == "" {
		return nil, fmt.Errorf("sessionCookie must not be empty")
	}
	if config.SessionTTL <= 0 {
		return nil, fmt.Errorf("invalid sessionTTL: %d. Must be a positive number of seconds", config.SessionTTL)
	}
	if config.MinDwellMs < 0 || config.ResubmitGapMs < 0 || config.LatencyMs < 0 {
		return nil, fmt.Errorf("minDwellMs, resubmitGapMs and latencyMs must not be negative")
	}

	trans, err := i18n.NewTranslations(config.Language, config.LocalesDir)
	if err != nil {
		return nil, fmt.Errorf("unable to load translations: %w", err)
	}

	var table *rules.Table
	if config.RulesFile != "" {
		table, err = rules.LoadFile(config.RulesFile)
	} else {
		table, err = rules.Default(trans, config.MinPhoneDigits, config.MaxPhoneDigits)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to build field rules: %w", err)
	}

	tmpl, err := loadTemplate(config.FormTmpl, log)
	if err != nil {
		return nil, err
	}

	ips, err := helper.ParseCIDRs(config.ExemptIPs)
	if err != nil {
		return nil, err
	}

	lg := &LeadGuard{
		next:      next,
		name:      name,
		config:    config,
		log:       log,
		trans:     trans,
		validator: form.NewValidator(table),
		guard: guard.New(guard.Thresholds{
			MinDwell:       time.Duration(config.MinDwellMs) * time.Millisecond,
			MinResubmitGap: time.Duration(config.ResubmitGapMs) * time.Millisecond,
		}),
		generator:  challenge.NewGenerator(),
		submitter:  submit.LogSubmitter{Log: log},
		exemptIps:  ips,
		tmpl:       tmpl,
		checkboxes: make(map[string]bool),
	}
	for _, r := range table.Rules() {
		if r.Checkbox {
			lg.checkboxes[r.Key] = true
		}
	}

	ttl := time.Duration(config.SessionTTL) * time.Second
	lg.sessions = session.NewStore(ttl, time.Minute, func(id string, p *page) {
		log.Debug("Session closed", "session", id)
		p.close()
	})

	context.AfterFunc(ctx, func() {
		log.Debug("Context canceled, closing sessions")
		lg.Close()
	})

	return lg, nil
}

func loadTemplate(path string, log *slog.Logger) (*template.Template, error) {
	if path == "" {
		return template.New("form").Parse(helper.GetDefaultTmpl())
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Warn("Unable to find template file. Using default template.", "formTmpl", path)
		return template.New("form").Parse(helper.GetDefaultTmpl())
	} else if err != nil {
		return nil, fmt.Errorf("error checking for template file %s: %v", path, err)
	}
	tmpl, err := template.ParseFiles(path)
	if err != nil {
		return nil, fmt.Errorf("unable to parse form template file %s: %v", path, err)
	}
	return tmpl, nil
}

// SetSubmitter replaces the backend accepted leads are handed to.
func (lg *LeadGuard) SetSubmitter(s submit.Submitter) {
	lg.submitter = s
}

func (lg *LeadGuard) SetExemptIps(exemptIps []*net.IPNet) {
	lg.exemptIps = exemptIps
}

// Close tears down every session; pending outcomes are dropped.
func (lg *LeadGuard) Close() {
	lg.sessions.Close()
}

func (lg *LeadGuard) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	clientIP := helper.ClientIP(req, lg.config.IPForwardedHeader, lg.config.IPDepth, lg.exemptIps)

	switch req.URL.Path {
	case lg.config.FormURL:
		switch req.Method {
		case http.MethodGet, http.MethodHead:
			lg.serveFormPage(rw, req)
		case http.MethodPost:
			lg.serveSubmit(rw, req, clientIP)
		default:
			http.Error(rw, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	case lg.config.FormURL + "/validate":
		if req.Method != http.MethodPost {
			http.Error(rw, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		lg.serveValidate(rw, req)
		return
	case lg.config.FormURL + "/form.js":
		rw.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte(helper.GetFormJS()))
		return
	case StatsURL:
		if lg.config.EnableStatsPage == "true" {
			lg.log.Info("Lead guard stats", "clientIP", clientIP, "method", req.Method, "path", req.URL.Path, "useragent", req.UserAgent())
			lg.serveStatsPage(rw, clientIP)
			return
		}
	}

	lg.next.ServeHTTP(rw, req)
}

// startSession opens a session whose form is considered loaded now and
// points the session cookie at it.
func (lg *LeadGuard) startSession(rw http.ResponseWriter) (string, *page) {
	id := uuid.NewString()
	p := lg.newPage()
	lg.sessions.Set(id, p)
	http.SetCookie(rw, &http.Cookie{
		Name:     lg.config.SessionCookie,
		Value:    id,
		Path:     lg.config.FormURL,
		MaxAge:   int(lg.config.SessionTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id, p
}

// lookupSession returns the session named by the request cookie. A stale
// cookie gets a new session that starts now. A request without any cookie
// never loaded the form, so it gets a page that lives for this request only
// and is never stored; release must be called once the response is built.
func (lg *LeadGuard) lookupSession(rw http.ResponseWriter, req *http.Request) (id string, p *page, release func()) {
	c, err := req.Cookie(lg.config.SessionCookie)
	if err != nil {
		p = lg.newPage()
		return "", p, p.close
	}
	if p, ok := lg.sessions.Get(c.Value); ok {
		return c.Value, p, func() {}
	}
	id, p = lg.startSession(rw)
	return id, p, func() {}
}

func (lg *LeadGuard) serveFormPage(rw http.ResponseWriter, req *http.Request) {
	// every page load restarts the dwell clock
	if c, err := req.Cookie(lg.config.SessionCookie); err == nil {
		lg.sessions.Delete(c.Value)
	}
	_, p := lg.startSession(rw)
	p.display.Drain()

	d := map[string]string{
		"Lang":         lg.trans.Language(),
		"ScriptURL":    lg.config.FormURL + "/form.js",
		"FormURL":      lg.config.FormURL,
		"Question":     p.orchestrator.Prompt(),
		"HoneypotName": lg.config.HoneypotName,
		"SubmitLabel":  lg.trans.Message(i18n.SubmitIdle, nil),
		"BusyLabel":    lg.trans.Message(i18n.SubmitBusy, nil),
	}
	rw.Header().Set("Content-Type", "text/html; charset=utf-8")
	rw.Header().Set("Cache-Control", "no-store")

	err := lg.tmpl.Execute(rw, d)
	if err != nil {
		lg.log.Error("Unable to execute go template", "tmpl", lg.config.FormTmpl, "err", err)
		http.Error(rw, "Internal error", http.StatusInternalServerError)
	}
}

type submitResponse struct {
	Status      string            `json:"status"`
	Message     string            `json:"message,omitempty"`
	FieldErrors map[string]string `json:"fieldErrors,omitempty"`
	Focus       string            `json:"focus,omitempty"`
	Challenge   string            `json:"challenge"`
	Events      []form.Event      `json:"events"`
}

func (lg *LeadGuard) formValues(req *http.Request) form.Values {
	values := form.Values{}
	keys := append(lg.validator.Table().Keys(), rules.FieldMessage)
	for _, k := range keys {
		v := req.PostFormValue(k)
		if lg.checkboxes[k] {
			values[k] = form.Checkbox(v != "")
			continue
		}
		values[k] = form.Text(v)
	}
	return values
}

func (lg *LeadGuard) serveSubmit(rw http.ResponseWriter, req *http.Request, clientIP string) {
	if err := req.ParseForm(); err != nil {
		http.Error(rw, "Bad request", http.StatusBadRequest)
		return
	}
	id, p, release := lg.lookupSession(rw, req)
	defer release()

	attempt := p.orchestrator.Submit(lg.formValues(req), req.PostFormValue(lg.config.HoneypotName))
	lg.log.Info("Lead form submission", "clientIP", clientIP, "session", id, "outcome", attempt.Outcome.String(), "reason", attempt.Reason.String(), "useragent", req.UserAgent())

	status := http.StatusOK
	resp := submitResponse{Status: "pending", FieldErrors: map[string]string{}}
	if !p.orchestrator.Wait(req.Context(), attempt) {
		status = http.StatusAccepted
	}
	resp.Events = p.display.Drain()
	for _, e := range resp.Events {
		switch e.Op {
		case form.OpShowFormMessage:
			resp.Status = string(e.Kind)
			resp.Message = e.Text
		case form.OpShowFieldError:
			resp.FieldErrors[e.Key] = e.Text
		case form.OpClearFieldError:
			delete(resp.FieldErrors, e.Key)
		case form.OpFocusField:
			resp.Focus = e.Key
		}
	}
	resp.Challenge = p.orchestrator.Prompt()

	lg.writeJSON(rw, status, resp)
}

type validateResponse struct {
	Field     string       `json:"field"`
	Valid     bool         `json:"valid"`
	Message   string       `json:"message,omitempty"`
	Formatted *string      `json:"formatted,omitempty"`
	Events    []form.Event `json:"events"`
}

func (lg *LeadGuard) serveValidate(rw http.ResponseWriter, req *http.Request) {
	if err := req.ParseForm(); err != nil {
		http.Error(rw, "Bad request", http.StatusBadRequest)
		return
	}
	key := req.PostFormValue("field")
	if _, ok := lg.validator.Table().Rule(key); !ok {
		http.Error(rw, "Unknown field", http.StatusBadRequest)
		return
	}
	_, p, release := lg.lookupSession(rw, req)
	defer release()

	raw := req.PostFormValue("value")
	value := form.Text(raw)
	if lg.checkboxes[key] {
		value = form.Checkbox(raw != "")
	}

	res := p.orchestrator.Blur(key, value)
	resp := validateResponse{
		Field:   key,
		Valid:   res.OK(),
		Message: res.Message,
		Events:  p.display.Drain(),
	}
	if key == rules.FieldPhone {
		formatted := helper.FormatPhone(raw)
		resp.Formatted = &formatted
	}

	lg.writeJSON(rw, http.StatusOK, resp)
}

func (lg *LeadGuard) serveStatsPage(rw http.ResponseWriter, ip string) {
	// only allow excluded IPs from viewing
	if !helper.IsIpExcluded(ip, lg.exemptIps) {
		http.Error(rw, "Forbidden", http.StatusForbidden)
		return
	}

	state := lg.sessions.State(func(p *page) any {
		return p.describe()
	})
	lg.writeJSON(rw, http.StatusOK, state)
}

func (lg *LeadGuard) writeJSON(rw http.ResponseWriter, status int, v any) {
	jsonData, err := json.Marshal(v)
	if err != nil {
		lg.log.Error("failed to marshal JSON", "err", err)
		http.Error(rw, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	rw.Header().Set("Content-Type", "application/json")
	rw.Header().Set("Cache-Control", "no-store")
	rw.WriteHeader(status)
	_, err = rw.Write(jsonData)
	if err != nil {
		lg.log.Error("failed to write JSON response", "err", err)
	}
}
