package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/libops/leadguard"
	"github.com/libops/leadguard/internal/challenge"
	"github.com/libops/leadguard/internal/i18n"
	logger "github.com/libops/leadguard/internal/log"
	"github.com/libops/leadguard/internal/rules"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	configPath string
	addr       string
	count      int
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "leadguard",
	Short: "Contact form validation with a quiet bot filter",
	Long: `leadguard serves a contact form, validates every field, asks a small
arithmetic question and answers obvious form-filling scripts with the same
success message a person would see.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the contact form over HTTP",
	RunE:  runServe,
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Print the effective field rules as JSON",
	RunE:  runRules,
}

var challengeCmd = &cobra.Command{
	Use:   "challenge",
	Short: "Print sample arithmetic challenges",
	RunE:  runChallenge,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (.json, .yaml or .toml)")
	serveCmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	challengeCmd.Flags().IntVarP(&count, "count", "n", 5, "Number of challenges")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(challengeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*leadguard.Config, error) {
	if configPath == "" {
		return leadguard.CreateConfig(), nil
	}
	return leadguard.LoadConfig(configPath)
}

func runServe(cmd *cobra.Command, args []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.New(config.LogLevel)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	site := http.NewServeMux()
	site.HandleFunc("/", func(rw http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/" {
			http.NotFound(rw, req)
			return
		}
		http.Redirect(rw, req, config.FormURL, http.StatusFound)
	})

	handler, err := leadguard.New(ctx, site, config, "leadguard")
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Serving contact form", "addr", addr, "formURL", config.FormURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

type ruleView struct {
	Key       string            `json:"key"`
	Kind      string            `json:"kind"`
	Required  bool              `json:"required"`
	MinLength int               `json:"minLength,omitempty"`
	Pattern   string            `json:"pattern,omitempty"`
	MinDigits int               `json:"minDigits,omitempty"`
	MaxDigits int               `json:"maxDigits,omitempty"`
	Messages  map[string]string `json:"messages"`
}

func runRules(cmd *cobra.Command, args []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}
	table, err := effectiveRules(config)
	if err != nil {
		return err
	}
	return printRules(cmd.OutOrStdout(), table)
}

func effectiveRules(config *leadguard.Config) (*rules.Table, error) {
	if config.RulesFile != "" {
		return rules.LoadFile(config.RulesFile)
	}
	trans, err := i18n.NewTranslations(config.Language, config.LocalesDir)
	if err != nil {
		return nil, err
	}
	return rules.Default(trans, config.MinPhoneDigits, config.MaxPhoneDigits)
}

func printRules(w io.Writer, table *rules.Table) error {
	views := make([]ruleView, 0, table.Len())
	for _, r := range table.Rules() {
		v := ruleView{
			Key:       r.Key,
			Kind:      r.Kind().String(),
			Required:  r.Required,
			MinLength: r.MinLength,
			MinDigits: r.MinDigits,
			MaxDigits: r.MaxDigits,
			Messages:  make(map[string]string, len(r.Messages)),
		}
		if r.Pattern != nil {
			v.Pattern = r.Pattern.String()
		}
		for kind, msg := range r.Messages {
			v.Messages[kind.String()] = msg
		}
		views = append(views, v)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(views)
}

func runChallenge(cmd *cobra.Command, args []string) error {
	if count < 1 {
		return fmt.Errorf("count must be positive, got %d", count)
	}
	gen := challenge.NewGenerator()
	for range count {
		c := gen.Generate()
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", c.Question, c.Answer)
	}
	return nil
}
