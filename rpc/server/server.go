package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/ValentinKolb/dTxn/lib/db"
	"github.com/ValentinKolb/dTxn/lib/db/engines/maple"
	"github.com/ValentinKolb/dTxn/lib/db/engines/redis"
	"github.com/ValentinKolb/dTxn/lib/store"
	"github.com/ValentinKolb/dTxn/lib/store/lstore"
	"github.com/ValentinKolb/dTxn/rpc/common"
	"github.com/ValentinKolb/dTxn/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("server")

// Version is reported by the welcome endpoint
var Version = "dev"

const snapshotExt = ".snapshot"

// NewDocServer creates a new document server
// It takes a config and a transport as parameters
//
// Usage:
//
//	s := server.NewDocServer(
//		*config,
//		http.NewHttpServerTransport(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewDocServer(config common.ServerConfig, transport transport.IDocServerTransport) *DocServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	return &DocServer{
		config:    config,
		transport: transport,
		databases: xsync.NewMapOf[string, store.IStore](),
	}
}

// DocServer serves a set of named document databases over a CouchDB style api
type DocServer struct {
	config    common.ServerConfig
	transport transport.IDocServerTransport
	databases *xsync.MapOf[string, store.IStore]
}

// --------------------------------------------------------------------------
// Database registry
// --------------------------------------------------------------------------

// dbFactory returns the factory for the configured engine. Every database gets
// its own engine instance; for redis they are separated by key prefix.
func (s *DocServer) dbFactory(name string) store.DBFactory {
	switch s.config.Engine {
	case common.EngineRedis:
		return func() db.DocDB {
			return redis.NewRedisDB(&redis.DBOptions{
				Addr:     s.config.Redis.Addr,
				Password: s.config.Redis.Password,
				DB:       s.config.Redis.DB,
				Prefix:   "dtxn:" + name + ":",
				Timeout:  time.Duration(max(1, s.config.TimeoutSecond)) * time.Second,
			})
		}
	default:
		return func() db.DocDB { return maple.NewMapleDB(nil) }
	}
}

// CreateDatabase creates the database if it does not exist yet.
// The boolean is false if the database already existed.
func (s *DocServer) CreateDatabase(name string) (store.IStore, bool, error) {
	if err := validateDBName(name); err != nil {
		return nil, false, err
	}

	created := false
	st, _ := s.databases.LoadOrCompute(name, func() store.IStore {
		created = true
		return lstore.NewLocalStore(s.dbFactory(name))
	})
	if created {
		Logger.Infof("created database %q", name)
	}
	return st, created, nil
}

// Database returns the store of an existing database
func (s *DocServer) Database(name string) (store.IStore, bool) {
	return s.databases.Load(name)
}

// DeleteDatabase removes a database and closes its store
func (s *DocServer) DeleteDatabase(name string) bool {
	st, ok := s.databases.LoadAndDelete(name)
	if !ok {
		return false
	}
	if err := st.Close(); err != nil {
		Logger.Warningf("closing database %q: %v", name, err)
	}
	Logger.Infof("deleted database %q", name)
	return true
}

// DatabaseNames returns all database names in sorted order
func (s *DocServer) DatabaseNames() []string {
	names := make([]string, 0, s.databases.Size())
	s.databases.Range(func(name string, _ store.IStore) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}

// validateDBName follows the CouchDB rules loosely: lowercase start, no slashes
func validateDBName(name string) error {
	if name == "" || strings.HasPrefix(name, "_") || strings.ContainsAny(name, "/\\ ") {
		return fmt.Errorf("invalid database name %q", name)
	}
	return nil
}

// --------------------------------------------------------------------------
// Snapshots
// --------------------------------------------------------------------------

func (s *DocServer) loadSnapshots() error {
	if s.config.SnapshotDir == "" {
		return nil
	}
	files, err := filepath.Glob(filepath.Join(s.config.SnapshotDir, "*"+snapshotExt))
	if err != nil {
		return err
	}
	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), snapshotExt)
		st, _, err := s.CreateDatabase(name)
		if err != nil {
			return err
		}
		if err := loadFile(st, file); err != nil {
			return fmt.Errorf("loading snapshot %s: %w", file, err)
		}
		info, _ := st.GetDBInfo()
		Logger.Infof("loaded %d documents into %q from %s", info.DocCount, name, file)
	}
	return nil
}

func loadFile(st store.IStore, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	return st.Load(f)
}

// SaveSnapshots writes one snapshot file per database. Databases whose engine
// cannot be snapshotted are skipped.
func (s *DocServer) SaveSnapshots() error {
	if s.config.SnapshotDir == "" {
		return nil
	}
	if err := os.MkdirAll(s.config.SnapshotDir, 0o755); err != nil {
		return err
	}

	var errs []error
	s.databases.Range(func(name string, st store.IStore) bool {
		if err := saveFile(st, filepath.Join(s.config.SnapshotDir, name+snapshotExt)); err != nil {
			if store.IsNotImplemented(err) {
				Logger.Debugf("database %q does not support snapshots", name)
				return true
			}
			errs = append(errs, fmt.Errorf("database %q: %w", name, err))
		}
		return true
	})
	return errors.Join(errs...)
}

// saveFile writes to a temporary file first so a crash never leaves a truncated snapshot
func saveFile(st store.IStore, file string) error {
	tmp := file + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := st.Save(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, file)
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Init creates the configured databases and restores snapshots
func (s *DocServer) Init() error {
	if err := s.loadSnapshots(); err != nil {
		return err
	}
	for _, name := range s.config.Databases {
		if _, _, err := s.CreateDatabase(name); err != nil {
			return err
		}
	}

	s.transport.RegisterHandler(s.Handler())
	Logger.Infof("dTxn server setup completed successfully")
	return nil
}

// Serve initializes the server and starts the transport layer.
// It returns after Shutdown was called or the listener failed.
func (s *DocServer) Serve() error {
	Logger.Infof("Created document server")
	Logger.Infof(s.config.String())

	if err := s.Init(); err != nil {
		return err
	}
	return s.transport.Listen(s.config)
}

// Shutdown stops the transport, writes snapshots and closes all databases
func (s *DocServer) Shutdown(ctx context.Context) error {
	var errs []error
	if err := s.transport.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.SaveSnapshots(); err != nil {
		errs = append(errs, err)
	}
	s.databases.Range(func(name string, st store.IStore) bool {
		if err := st.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %q: %w", name, err))
		}
		return true
	})
	return errors.Join(errs...)
}
