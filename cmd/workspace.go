package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/leadscope/leadscope/internal/utils"
	"github.com/leadscope/leadscope/pkg/ai"
	"github.com/leadscope/leadscope/pkg/conversation"
	"github.com/leadscope/leadscope/pkg/manager"
	"github.com/leadscope/leadscope/pkg/scoring"
	"github.com/leadscope/leadscope/pkg/storage"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// workspace is the lead collection loaded from the database, held under the
// database lock until closed.
type workspace struct {
	lock *utils.WorkspaceLock
	db   *storage.DB
	mgr  *manager.Manager

	saveMu sync.Mutex
}

func dbPathFromConfig() (string, error) {
	p := viper.GetString("db.path")
	if p != "" {
		expanded, err := homedir.Expand(p)
		if err != nil {
			return "", err
		}
		p = expanded
	}
	return utils.GetAbsDBPath(p)
}

func openWorkspace(ctx context.Context) (*workspace, error) {
	engine, err := scoringEngine()
	if err != nil {
		return nil, err
	}

	path, err := dbPathFromConfig()
	if err != nil {
		return nil, err
	}
	lock, err := utils.NewWorkspaceLock(path)
	if err != nil {
		return nil, err
	}
	lockCtx := ctx
	if wait := viper.GetDuration("db.lock_timeout"); wait > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, wait)
		defer cancel()
	}
	if err := lock.Acquire(lockCtx); err != nil {
		return nil, err
	}

	db, err := storage.Open(path, storage.DefaultDBTimeout)
	if err != nil {
		lock.Release()
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	mgr := manager.New(manager.Config{Engine: engine, Log: utils.Log})
	if err := loadWorkspace(ctx, db, mgr); err != nil {
		db.Close()
		lock.Release()
		return nil, err
	}
	utils.Log.Debugf("Loaded %d leads from %s", mgr.Len(), path)

	return &workspace{lock: lock, db: db, mgr: mgr}, nil
}

// loadWorkspace restores leads, then their interaction logs. Records that no
// longer validate are logged by the manager and skipped.
func loadWorkspace(ctx context.Context, db *storage.DB, mgr *manager.Manager) error {
	leads, err := db.LoadLeads(ctx)
	if err != nil {
		return fmt.Errorf("loading leads: %w", err)
	}
	history, err := db.LoadInteractions(ctx)
	if err != nil {
		return fmt.Errorf("loading interactions: %w", err)
	}
	mgr.Load(leads)
	mgr.RestoreInteractions(history)
	return nil
}

// save writes the whole collection back.
func (w *workspace) save(ctx context.Context) error {
	w.saveMu.Lock()
	defer w.saveMu.Unlock()
	if err := w.db.SaveLeads(ctx, w.mgr.Leads(), w.mgr.AllInteractions()); err != nil {
		return fmt.Errorf("saving leads: %w", err)
	}
	return nil
}

func (w *workspace) close() {
	if err := w.db.Close(); err != nil {
		utils.Log.Warnf("Closing database: %v", err)
	}
	if err := w.lock.Release(); err != nil {
		utils.Log.Warnf("%v", err)
	}
}

// recordTurn persists a chat turn; failures only cost the transcript.
func (w *workspace) recordTurn(ctx context.Context, s *conversation.Session, t conversation.Turn) {
	err := w.db.RecordTurn(ctx, storage.TurnRecord{
		SessionID:  s.ID,
		Input:      t.Input,
		Response:   t.Response,
		Route:      string(t.Route),
		OccurredAt: t.OccurredAt,
	})
	if err != nil {
		utils.Log.Warnf("Could not record turn: %v", err)
	}
}

func scoringEngine() (*scoring.Engine, error) {
	c := scoring.DefaultCriteria()
	if err := viper.UnmarshalKey("scoring", &c); err != nil {
		return nil, fmt.Errorf("reading scoring config: %w", err)
	}
	e, err := scoring.NewEngine(c)
	if err != nil {
		return nil, fmt.Errorf("invalid scoring config: %w", err)
	}
	return e, nil
}

var providerKeyEnv = map[string][]string{
	ai.ProviderXAI:    {"GROK_API_KEY", "XAI_API_KEY"},
	ai.ProviderOpenAI: {"OPENAI_API_KEY"},
	ai.ProviderGemini: {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

func aiConfig() ai.Config {
	provider := strings.ToLower(strings.TrimSpace(viper.GetString("ai.provider")))
	if provider == "" {
		provider = ai.ProviderXAI
	}
	key := viper.GetString("ai.api_key")
	if key == "" {
		for _, name := range providerKeyEnv[provider] {
			if key = os.Getenv(name); key != "" {
				break
			}
		}
	}
	return ai.Config{
		Provider:   provider,
		APIKey:     key,
		Model:      viper.GetString("ai.model"),
		Endpoint:   viper.GetString("ai.endpoint"),
		Timeout:    viper.GetDuration("ai.timeout"),
		MaxRetries: viper.GetInt("ai.max_retries"),
	}
}

// chatBackend returns nil when no API key is configured; the dispatcher then
// answers structured commands only.
func chatBackend(ctx context.Context) (conversation.Backend, error) {
	cfg := aiConfig()
	if cfg.APIKey == "" {
		utils.Log.Warnf("No API key for %s, free-form questions are disabled", cfg.Provider)
		return nil, nil
	}
	b, err := ai.NewBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return b, nil
}
