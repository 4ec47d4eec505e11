package economy

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"coinfm/logger"
	"coinfm/repository"

	"github.com/fsnotify/fsnotify"
)

// ErrInvalidCode indicates the submitted promo code is not on the allow-list.
var ErrInvalidCode = errors.New("invalid promo code")

// defaultCodes ship with the binary; a code file extends or replaces them.
var defaultCodes = []string{"COINFM2026", "FREEPREMIUM"}

// PromoRedeemer matches promo codes case-insensitively and flips the
// premium flag. The allow-list can be backed by a file that is reloaded
// whenever it changes.
type PromoRedeemer struct {
	mu       sync.RWMutex
	codes    map[string]struct{}
	userRepo repository.UserRepository
	watcher  *fsnotify.Watcher
}

// NewPromoRedeemer creates a redeemer seeded with the built-in codes.
func NewPromoRedeemer(userRepo repository.UserRepository) *PromoRedeemer {
	codes := make(map[string]struct{}, len(defaultCodes))
	for _, c := range defaultCodes {
		codes[strings.ToUpper(c)] = struct{}{}
	}
	return &PromoRedeemer{codes: codes, userRepo: userRepo}
}

// LoadFile replaces the allow-list with the codes in path, one per line.
// Blank lines and lines starting with # are skipped.
func (p *PromoRedeemer) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open promo code file: %w", err)
	}
	defer f.Close()

	codes := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		codes[strings.ToUpper(line)] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read promo code file: %w", err)
	}

	p.mu.Lock()
	p.codes = codes
	p.mu.Unlock()

	logger.Info("promo codes loaded", logger.String("path", path), logger.Int("count", len(codes)))
	return nil
}

// Watch reloads the code file whenever it is rewritten. Call Close to stop.
func (p *PromoRedeemer) Watch(path string) error {
	if err := p.LoadFile(path); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create promo watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch promo code file: %w", err)
	}
	p.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					if err := p.LoadFile(path); err != nil {
						logger.Warn("promo code reload failed", logger.ErrorField(err))
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("promo watcher error", logger.ErrorField(err))
			}
		}
	}()

	return nil
}

// Close stops the file watcher, if any.
func (p *PromoRedeemer) Close() error {
	if p.watcher != nil {
		return p.watcher.Close()
	}
	return nil
}

// Matches reports whether code is on the allow-list. Case-insensitive.
func (p *PromoRedeemer) Matches(code string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.codes[strings.ToUpper(strings.TrimSpace(code))]
	return ok
}

// Redeem flips the premium flag when code matches the allow-list.
func (p *PromoRedeemer) Redeem(userID int64, code string) error {
	if !p.Matches(code) {
		return ErrInvalidCode
	}
	if err := p.userRepo.SetPremium(userID); err != nil {
		return err
	}
	logger.Info("promo code redeemed", logger.Int64("userId", userID))
	return nil
}
