package store

import (
	"context"
	"encoding/json"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"travelfolio/internal/types"
)

// firestoreStore keeps documents under
// artifacts/{appID}/users/{user}/{trips|alerts}/{id}.
type firestoreStore struct {
	client *firestore.Client
	appID  string
}

// NewFirestore opens the remote document store using a service-account
// credentials file.
func NewFirestore(ctx context.Context, credentialsFile, appID string) (Store, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, errors.Wrap(err, "could not initialize firebase app")
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "could not create firestore client")
	}
	return &firestoreStore{client: client, appID: appID}, nil
}

func (s *firestoreStore) userRef(user string) *firestore.DocumentRef {
	return s.client.Collection("artifacts").Doc(s.appID).Collection("users").Doc(user)
}

// Users lists user scopes by document ref, not document snapshot: user docs
// exist only through their subcollections and never hold fields themselves.
func (s *firestoreStore) Users(ctx context.Context) ([]string, error) {
	var users []string
	iter := s.client.Collection("artifacts").Doc(s.appID).Collection("users").DocumentRefs(ctx)
	for {
		ref, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "could not list users")
		}
		users = append(users, ref.ID)
	}
	return users, nil
}

func (s *firestoreStore) Trips(ctx context.Context, user string) (map[string]types.Trip, error) {
	trips := map[string]types.Trip{}
	iter := s.userRef(user).Collection("trips").Documents(ctx)
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "could not list trips for %s", user)
		}
		var trip types.Trip
		if err := decodeDoc(doc.Data(), &trip); err != nil {
			return nil, errors.Wrapf(err, "corrupt trip %s", doc.Ref.ID)
		}
		trips[doc.Ref.ID] = trip
	}
	return trips, nil
}

func (s *firestoreStore) SaveTrip(ctx context.Context, user, id string, trip types.Trip) error {
	if err := trip.Validate(); err != nil {
		return err
	}
	data, err := encodeDoc(trip)
	if err != nil {
		return err
	}
	_, err = s.userRef(user).Collection("trips").Doc(id).Set(ctx, data)
	return errors.Wrapf(err, "could not save trip %s", id)
}

func (s *firestoreStore) DeleteTrip(ctx context.Context, user, id string) error {
	_, err := s.userRef(user).Collection("trips").Doc(id).Delete(ctx)
	return errors.Wrapf(err, "could not delete trip %s", id)
}

func (s *firestoreStore) Alerts(ctx context.Context, user string) ([]types.Alert, error) {
	var alerts []types.Alert
	iter := s.userRef(user).Collection("alerts").Documents(ctx)
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "could not list alerts for %s", user)
		}
		var alert types.Alert
		if err := decodeDoc(doc.Data(), &alert); err != nil {
			return nil, errors.Wrapf(err, "corrupt alert %s", doc.Ref.ID)
		}
		alert.ID = doc.Ref.ID
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

func (s *firestoreStore) SaveAlert(ctx context.Context, user string, alert types.Alert) error {
	if err := alert.Validate(); err != nil {
		return err
	}
	data, err := encodeDoc(alert)
	if err != nil {
		return err
	}
	delete(data, "id") // the document ref is the id
	_, err = s.userRef(user).Collection("alerts").Doc(alert.ID).Set(ctx, data)
	return errors.Wrapf(err, "could not save alert %s", alert.ID)
}

func (s *firestoreStore) PatchAlert(ctx context.Context, user, id string, patch AlertPatch) error {
	var updates []firestore.Update
	if patch.LastSeenPrice != nil {
		updates = append(updates, firestore.Update{Path: "lastSeenPrice", Value: *patch.LastSeenPrice})
	}
	if patch.TriggeredPrice != nil {
		updates = append(updates, firestore.Update{Path: "triggeredPrice", Value: *patch.TriggeredPrice})
	}
	if patch.NotifiedAt != nil {
		updates = append(updates, firestore.Update{Path: "notifiedAt", Value: patch.NotifiedAt.Format(time.RFC3339Nano)})
	}
	if patch.ClearNotifiedAt {
		updates = append(updates, firestore.Update{Path: "notifiedAt", Value: nil})
	}
	if len(updates) == 0 {
		return nil
	}

	_, err := s.userRef(user).Collection("alerts").Doc(id).Update(ctx, updates)
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	return errors.Wrapf(err, "could not patch alert %s", id)
}

func (s *firestoreStore) DeleteAlert(ctx context.Context, user, id string) error {
	_, err := s.userRef(user).Collection("alerts").Doc(id).Delete(ctx)
	return errors.Wrapf(err, "could not delete alert %s", id)
}

func (s *firestoreStore) Close() error {
	return s.client.Close()
}

// encodeDoc/decodeDoc round-trip through JSON so documents keep the wire
// field names (targetPrice, lastSeenPrice, ...) shared with the local files
// and the UI payloads.
func encodeDoc(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "could not encode document")
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, errors.Wrap(err, "could not encode document")
	}
	return data, nil
}

func decodeDoc(data map[string]any, out any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "could not decode document")
	}
	return errors.Wrap(json.Unmarshal(raw, out), "could not decode document")
}
