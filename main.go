package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"listingdesk/auth"
	"listingdesk/catalog"
	"listingdesk/config"
	"listingdesk/httputil"
	"listingdesk/logging"
	"listingdesk/storage"
	"listingdesk/store"
)

var Version = "dev"

// app holds the client-side wiring shared by the account and listing
// commands.
type app struct {
	cfg      *config.Config
	clients  *httputil.Clients
	catalog  *catalog.Catalog
	sessions *storage.SQLiteLocalStore
	auth     *auth.Client
	gateway  *storage.SupabaseGateway
	objects  storage.ObjectStore
	store    *store.Store
	logFile  *logging.RotatingWriter

	stopEvents func()
	listening  chan struct{}
	settleOnce sync.Once
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	rootCmd := &cobra.Command{
		Use:           "listingdesk",
		Short:         "Listing Desk - create, enrich and publish property listings",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		signupCmd(),
		loginCmd(),
		logoutCmd(),
		whoamiCmd(),
		propertiesCmd(),
		imagesCmd(),
		featuresCmd(),
		enhancementsCmd(),
		inspectionsCmd(),
		catalogCmd(),
		quoteCmd(),
		checkoutCmd(),
		addressCmd(),
		serveCmd(),
		publishSweepCmd(),
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type appRun func(ctx context.Context, a *app, args []string) error

// withApp builds the client wiring for one command and tears it down after.
func withApp(run appRun) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd.Context(), a, args)
	}
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a := &app{cfg: cfg, clients: httputil.NewClients()}

	a.logFile, err = logging.Setup(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	}

	a.catalog, err = catalog.Load(cfg.Catalog.PackagesPath)
	if err != nil {
		return nil, err
	}

	a.sessions, err = storage.NewSQLiteLocalStore(cfg.SessionDBPath)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	a.auth = auth.NewClient(&cfg.Supabase, a.clients.API)
	a.gateway = storage.NewSupabaseGateway(&cfg.Supabase, a.clients.API)

	switch cfg.ObjectBackend {
	case "s3":
		a.objects, err = storage.NewS3ObjectStore(ctx, cfg.S3)
		if err != nil {
			a.sessions.Close()
			return nil, err
		}
	default:
		a.objects = storage.NewSupabaseObjectStore(a.gateway)
	}

	a.store = store.New(store.Deps{
		Gateway:  a.gateway,
		Objects:  a.objects,
		Auth:     a.auth,
		Sessions: a.sessions,
		Catalog:  a.catalog,
	})

	events, stop := a.auth.OnAuthStateChange()
	a.stopEvents = stop
	a.listening = make(chan struct{})
	go func() {
		defer close(a.listening)
		a.store.Listen(context.WithoutCancel(ctx), events)
	}()

	logging.Debugf("Backend: %s, objects: %s", cfg.Supabase.URL, cfg.ObjectBackend)
	return a, nil
}

// settle stops listening for auth events and waits until every event
// already emitted has been applied to the store.
func (a *app) settle() {
	a.settleOnce.Do(func() {
		a.stopEvents()
		<-a.listening
	})
}

func (a *app) Close() {
	a.settle()
	if err := a.sessions.Close(); err != nil {
		log.Printf("Error closing session store: %v", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
}

// signedIn restores the persisted session, refreshing it when the access
// token has expired.
func (a *app) signedIn(ctx context.Context) (*auth.Session, error) {
	ok, err := a.store.Restore()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("not signed in, run `listingdesk login` first")
	}

	sess := a.store.Session()
	if sess.Expired(time.Now()) {
		if _, err := a.auth.Refresh(ctx, sess.RefreshToken); err != nil {
			return nil, fmt.Errorf("session expired: %w", err)
		}
		a.settle()
	}
	return a.store.RequireSession()
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
