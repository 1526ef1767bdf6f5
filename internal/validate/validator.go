// File: internal/validate/validator.go
// Description: Post-install smoke checks. Every check is independently
// time-bounded so one hung check cannot block the whole report, and a
// timed-out check is recorded as a failure, never left pending.
package validate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/kvasirlabs/gatewright/api/schemas"
	"github.com/kvasirlabs/gatewright/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Validator runs read-only smoke checks against written artifacts.
type Validator struct {
	cfg config.ValidateConfig
	log *zap.Logger
}

// New creates a Validator.
func New(cfg config.ValidateConfig, logger *zap.Logger) *Validator {
	return &Validator{cfg: cfg, log: logger.Named("validate")}
}

// Validate checks each path and returns one outcome per path. Checks are
// independent and read-only, so they run concurrently up to the
// configured limit.
func (v *Validator) Validate(ctx context.Context, root string, paths []string) map[string]schemas.ValidationOutcome {
	outcomes := make(map[string]schemas.ValidationOutcome, len(paths))
	if len(paths) == 0 {
		return outcomes
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(v.cfg.Concurrency)

	for _, relPath := range paths {
		g.Go(func() error {
			outcome := v.checkWithTimeout(ctx, filepath.Join(root, relPath))
			mu.Lock()
			outcomes[relPath] = outcome
			mu.Unlock()
			if !outcome.OK {
				v.log.Warn("Smoke check failed",
					zap.String("path", relPath), zap.String("detail", outcome.Detail))
			}
			return nil
		})
	}
	// Checks report through the map, never through an error.
	_ = g.Wait()
	return outcomes
}

// checkWithTimeout enforces the per-check hard deadline. The check runs
// in its own goroutine; when the deadline wins the race, the result is a
// timeout failure regardless of what the check would have said.
func (v *Validator) checkWithTimeout(ctx context.Context, path string) schemas.ValidationOutcome {
	checkCtx, cancel := context.WithTimeout(ctx, v.cfg.CheckTimeout)
	defer cancel()

	// Budget already gone (cancelled caller or exhausted deadline): report
	// the timeout without starting work.
	if checkCtx.Err() != nil {
		return schemas.ValidationOutcome{OK: false, Detail: "timeout"}
	}

	done := make(chan schemas.ValidationOutcome, 1)
	go func() {
		done <- checkArtifact(path)
	}()

	select {
	case outcome := <-done:
		return outcome
	case <-checkCtx.Done():
		return schemas.ValidationOutcome{OK: false, Detail: "timeout"}
	}
}

// checkArtifact dispatches on the artifact kind. Artifacts the validator
// has no specific knowledge of still get an existence and encoding check.
func checkArtifact(path string) schemas.ValidationOutcome {
	raw, err := os.ReadFile(path)
	if err != nil {
		return schemas.ValidationOutcome{OK: false, Detail: fmt.Sprintf("unreadable: %v", err)}
	}

	switch {
	case strings.HasSuffix(path, ".json"):
		return checkJSON(raw)
	case strings.HasSuffix(path, ".yml"), strings.HasSuffix(path, ".yaml"):
		return checkYAML(raw)
	case strings.HasSuffix(path, ".properties"):
		return checkProperties(raw)
	case filepath.Base(filepath.Dir(path)) == "hooks":
		return checkHookScript(path, raw)
	default:
		return checkText(raw)
	}
}

func checkJSON(raw []byte) schemas.ValidationOutcome {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return schemas.ValidationOutcome{OK: false, Detail: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return schemas.ValidationOutcome{OK: true}
}

func checkYAML(raw []byte) schemas.ValidationOutcome {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return schemas.ValidationOutcome{OK: false, Detail: fmt.Sprintf("invalid YAML: %v", err)}
	}
	return schemas.ValidationOutcome{OK: true}
}

func checkProperties(raw []byte) schemas.ValidationOutcome {
	for i, line := range strings.Split(string(raw), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if !strings.Contains(trimmed, "=") {
			return schemas.ValidationOutcome{
				OK:     false,
				Detail: fmt.Sprintf("line %d is not a key=value pair", i+1),
			}
		}
	}
	return schemas.ValidationOutcome{OK: true}
}

func checkHookScript(path string, raw []byte) schemas.ValidationOutcome {
	if !strings.HasPrefix(string(raw), "#!") {
		return schemas.ValidationOutcome{OK: false, Detail: "missing shebang"}
	}
	info, err := os.Stat(path)
	if err != nil {
		return schemas.ValidationOutcome{OK: false, Detail: fmt.Sprintf("unreadable: %v", err)}
	}
	if info.Mode().Perm()&0o100 == 0 {
		return schemas.ValidationOutcome{OK: false, Detail: "not executable"}
	}
	return schemas.ValidationOutcome{OK: true}
}

func checkText(raw []byte) schemas.ValidationOutcome {
	if len(raw) == 0 {
		return schemas.ValidationOutcome{OK: false, Detail: "empty file"}
	}
	if !utf8.Valid(raw) {
		return schemas.ValidationOutcome{OK: false, Detail: "not valid UTF-8"}
	}
	return schemas.ValidationOutcome{OK: true}
}
