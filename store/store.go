package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"listingdesk/auth"
	"listingdesk/catalog"
	"listingdesk/logging"
	"listingdesk/media"
	"listingdesk/models"
	"listingdesk/storage"
)

const sessionKey = "auth.session"

// SessionStore is durable local key/value storage for the session.
type SessionStore interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// Authenticator ends sessions at the identity provider.
type Authenticator interface {
	SignOut(ctx context.Context, accessToken string) error
}

type tokenSetter interface {
	SetAccessToken(token string)
}

type Deps struct {
	Gateway  storage.Gateway
	Objects  storage.ObjectStore
	Auth     Authenticator
	Sessions SessionStore
	Catalog  *catalog.Catalog
}

// Store is the single state container for a signed-in client. Each entity
// family lives in exactly one slice; views read through the slices and
// learn about changes through Subscribe.
type Store struct {
	Profile      *ProfileSlice
	Properties   *PropertySlice
	Details      *DetailSlice
	Features     *FeatureSlice
	Enhancements *EnhancementSlice
	Inspections  *InspectionSlice

	deps    Deps
	catalog *catalog.Catalog
	hub     *hub

	mu      sync.RWMutex
	session *auth.Session
}

func New(deps Deps) *Store {
	s := &Store{
		deps:    deps,
		catalog: deps.Catalog,
		hub:     newHub(),
	}
	if s.catalog == nil {
		s.catalog = catalog.Default()
	}

	var uploader *media.Uploader
	if deps.Objects != nil {
		uploader = media.NewUploader(deps.Objects)
	}

	emit := s.hub.publish
	s.Profile = newProfileSlice(deps.Gateway, emit)
	s.Properties = newPropertySlice(deps.Gateway, uploader, emit)
	s.Details = newDetailSlice(deps.Gateway, uploader, emit)
	s.Features = newFeatureSlice(deps.Gateway, emit)
	s.Enhancements = newEnhancementSlice(deps.Gateway, emit)
	s.Inspections = newInspectionSlice(deps.Gateway, emit)
	s.Properties.dropDependents = s.dropProperty
	return s
}

// dropProperty clears local records that belong to a deleted property. The
// backing store cascades the rows themselves.
func (s *Store) dropProperty(id string) {
	s.Details.c.dropWhere(func(d models.PropertyDetail) bool { return d.PropertyID == id })
	s.Enhancements.c.dropWhere(func(e models.PropertyEnhancement) bool { return e.PropertyID == id })
	s.Inspections.c.dropWhere(func(i models.PropertyInspection) bool { return i.PropertyID == id })
	s.Features.Drop(id)
}

// Subscribe registers fn for every state change. The returned func cancels.
func (s *Store) Subscribe(fn func(Event)) func() {
	return s.hub.subscribe(fn)
}

func (s *Store) Catalog() *catalog.Catalog {
	return s.catalog
}

// Session returns a copy of the current session, or nil.
func (s *Store) Session() *auth.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil
	}
	cp := *s.session
	return &cp
}

// RequireSession guards authenticated routes.
func (s *Store) RequireSession() (*auth.Session, error) {
	sess := s.Session()
	if sess == nil {
		return nil, ErrUnauthenticated
	}
	return sess, nil
}

func (s *Store) setSession(sess *auth.Session) {
	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()

	if ts, ok := s.deps.Gateway.(tokenSetter); ok {
		token := ""
		if sess != nil {
			token = sess.AccessToken
		}
		ts.SetAccessToken(token)
	}
	s.hub.publish(Event{Kind: EventSession, Slice: SliceSession})
}

// Restore loads the persisted session from local storage. It makes no
// network call; the identity provider confirms or revokes it later through
// auth events.
func (s *Store) Restore() (bool, error) {
	if s.deps.Sessions == nil {
		return false, nil
	}
	data, err := s.deps.Sessions.Get(sessionKey)
	if err != nil {
		return false, fmt.Errorf("restore session: %w", err)
	}
	if data == nil {
		return false, nil
	}
	var sess auth.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		logging.Warnf("Store: discarding unreadable session: %v", err)
		if derr := s.deps.Sessions.Delete(sessionKey); derr != nil {
			logging.Warnf("Store: delete session: %v", derr)
		}
		return false, nil
	}
	if sess.AccessToken == "" {
		return false, nil
	}
	s.setSession(&sess)
	return true, nil
}

func (s *Store) persistSession(sess *auth.Session) {
	if s.deps.Sessions == nil {
		return
	}
	data, err := json.Marshal(sess)
	if err != nil {
		logging.Errorf("Store: encode session: %v", err)
		return
	}
	if err := s.deps.Sessions.Set(sessionKey, data); err != nil {
		logging.Errorf("Store: persist session: %v", err)
	}
}

// HandleAuthEvent applies one identity provider notification.
func (s *Store) HandleAuthEvent(ctx context.Context, ev auth.Event) error {
	switch ev.Type {
	case auth.EventSignedOut:
		s.clear()
		return nil

	case auth.EventSignedIn, auth.EventTokenRefreshed, auth.EventUserUpdated:
		if ev.Session == nil {
			return nil
		}
		merged := *ev.Session
		if prev := s.Session(); prev != nil && prev.User.ID == merged.User.ID {
			merged.FirstName, merged.LastName = prev.FirstName, prev.LastName
		}
		s.setSession(&merged)

		if ev.Type == auth.EventSignedIn || merged.FirstName == "" {
			profile, err := s.Profile.Fetch(ctx, merged.User.ID)
			if err != nil {
				logging.Warnf("Store: fetch profile %s: %v", merged.User.ID, err)
			}
			mergeIdentity(&merged, profile)
			s.setSession(&merged)
		}
		s.persistSession(&merged)
		return nil
	}
	return nil
}

// mergeIdentity fills display names from the profile row, falling back to
// the metadata supplied at sign-up.
func mergeIdentity(sess *auth.Session, profile *models.Profile) {
	if profile != nil {
		if profile.FirstName != "" {
			sess.FirstName = profile.FirstName
		}
		if profile.LastName != "" {
			sess.LastName = profile.LastName
		}
		return
	}
	if sess.FirstName == "" {
		sess.FirstName, _ = sess.User.UserMetadata["first_name"].(string)
	}
	if sess.LastName == "" {
		sess.LastName, _ = sess.User.UserMetadata["last_name"].(string)
	}
}

func (s *Store) clear() {
	s.setSession(nil)
	if s.deps.Sessions != nil {
		if err := s.deps.Sessions.Delete(sessionKey); err != nil {
			logging.Errorf("Store: delete session: %v", err)
		}
	}
	s.Profile.SetAll(nil)
	s.Properties.SetAll(nil)
	s.Details.SetAll(nil)
	s.Enhancements.SetAll(nil)
	s.Inspections.SetAll(nil)
	s.Features.reset()
}

// Listen applies auth events until the channel closes or ctx ends.
func (s *Store) Listen(ctx context.Context, events <-chan auth.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := s.HandleAuthEvent(ctx, ev); err != nil {
				logging.Errorf("Store: auth event %s: %v", ev.Type, err)
			}
		}
	}
}

// SignOut ends the session at the provider and locally. Local state is
// cleared even if the provider call fails.
func (s *Store) SignOut(ctx context.Context) error {
	sess := s.Session()
	var err error
	if sess != nil && s.deps.Auth != nil {
		err = s.deps.Auth.SignOut(ctx, sess.AccessToken)
	}
	s.clear()
	return err
}

// LoadProperty fetches everything the listing wizard shows for a property.
func (s *Store) LoadProperty(ctx context.Context, propertyID string) error {
	if _, err := s.Details.Fetch(ctx, propertyID); err != nil {
		return err
	}
	if _, err := s.Features.Fetch(ctx, propertyID); err != nil {
		return err
	}
	if err := s.Enhancements.Fetch(ctx, propertyID); err != nil {
		return err
	}
	return s.Inspections.Fetch(ctx, propertyID)
}

// Quote prices a listing package plus the property's pending enhancements.
func (s *Store) Quote(propertyID, packageID, promo string) (catalog.Summary, error) {
	return s.catalog.Summarize(packageID, s.Enhancements.Selections(propertyID), promo)
}
