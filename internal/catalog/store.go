package catalog

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Options configures a Store.
type Options struct {
	ProductsFile    string
	ConsultantsFile string
	Resolve         ResolveOptions
}

// Store owns the current Snapshot. Load swaps in a fully built snapshot, so
// readers never observe a partial catalog.
type Store struct {
	opts     Options
	log      *zap.Logger
	validate *validatorv10.Validate
	nowFunc  func() time.Time

	loadMu  sync.Mutex
	version int64
	current atomic.Pointer[Snapshot]
}

// NewStore returns a Store holding an empty snapshot (version 0).
func NewStore(opts Options, log *zap.Logger) *Store {
	s := &Store{
		opts:     opts,
		log:      log,
		validate: validatorv10.New(),
		nowFunc:  time.Now,
	}
	s.current.Store(newSnapshot(0, time.Time{}, nil, map[string]Consultant{}))
	return s
}

// Load reads both source files and publishes a new snapshot. On error the
// previous snapshot stays in place.
func (s *Store) Load() error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	var products []Product
	if exists(s.opts.ProductsFile) {
		var (
			skipped int
			err     error
		)
		products, skipped, err = loadProducts(s.opts.ProductsFile, s.opts.Resolve)
		if err != nil {
			return err
		}
		if skipped > 0 {
			s.log.Warn("catalog: skipped product rows without CV",
				zap.String("file", s.opts.ProductsFile), zap.Int("skipped", skipped))
		}
	} else {
		s.log.Warn("catalog: products file not found, catalog is empty", zap.String("file", s.opts.ProductsFile))
	}

	consultants := map[string]Consultant{}
	if exists(s.opts.ConsultantsFile) {
		var err error
		consultants, err = loadConsultants(s.opts.ConsultantsFile, s.validate)
		if err != nil {
			return err
		}
	} else {
		s.log.Warn("catalog: consultants file not found, directory is empty", zap.String("file", s.opts.ConsultantsFile))
	}

	s.version++
	snap := newSnapshot(s.version, s.nowFunc(), products, consultants)
	s.current.Store(snap)

	s.log.Info("catalog: snapshot loaded",
		zap.Int64("version", snap.Version),
		zap.Int("products", len(products)),
		zap.Int("consultants", len(consultants)))
	return nil
}

// Snapshot returns the snapshot readers should use for one request.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Get looks up a consultant in the current snapshot.
func (s *Store) Get(id string) (Consultant, bool) {
	return s.Snapshot().Get(id)
}

// List returns products of brand from the current snapshot.
func (s *Store) List(brand string) []Product {
	return s.Snapshot().List(brand)
}

// Consultants returns the current consultant directory.
func (s *Store) Consultants() []Consultant {
	return s.Snapshot().Consultants()
}

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ScheduleReload reruns Load on the given cron spec (e.g. "@every 10m").
// The caller owns the returned scheduler and must Stop it.
func (s *Store) ScheduleReload(spec string) (*cron.Cron, error) {
	sched := cron.New(cron.WithParser(cronParser))
	_, err := sched.AddFunc(spec, func() {
		if err := s.Load(); err != nil {
			s.log.Error("catalog: scheduled reload failed, keeping previous snapshot",
				zap.Int64("version", s.Snapshot().Version), zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid catalog.reload_cron %q: %w", spec, err)
	}
	sched.Start()
	return sched, nil
}

func exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}
