package repository

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const defaultCollection = "records"

// Firestore is a Store keeping one document per record key.
type Firestore struct {
	client     *firestore.Client
	collection string
}

type firestoreEntry struct {
	Value string `firestore:"value"`
}

// NewFirestore creates a new Firestore-backed store
func NewFirestore(ctx context.Context, projectID, databaseID, collection string) (*Firestore, error) {
	if projectID == "" {
		return nil, goerr.New("project is required")
	}
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}
	if collection == "" {
		collection = defaultCollection
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID),
			goerr.V("database", databaseID),
		)
	}

	return &Firestore{
		client:     client,
		collection: collection,
	}, nil
}

func (f *Firestore) doc(key string) (*firestore.DocumentRef, error) {
	// document IDs may not contain a path separator
	if key == "" || strings.Contains(key, "/") {
		return nil, goerr.New("key is not a valid document ID", goerr.V("key", key))
	}
	return f.client.Collection(f.collection).Doc(key), nil
}

func (f *Firestore) Get(ctx context.Context, key string) (string, bool, error) {
	ref, err := f.doc(key)
	if err != nil {
		return "", false, err
	}

	snap, err := ref.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", false, nil
		}
		return "", false, goerr.Wrap(err, "failed to get record", goerr.V("key", key))
	}

	var entry firestoreEntry
	if err := snap.DataTo(&entry); err != nil {
		return "", false, goerr.Wrap(err, "failed to decode record", goerr.V("key", key))
	}
	return entry.Value, true, nil
}

func (f *Firestore) Set(ctx context.Context, key, value string) error {
	ref, err := f.doc(key)
	if err != nil {
		return err
	}
	if _, err := ref.Set(ctx, firestoreEntry{Value: value}); err != nil {
		return goerr.Wrap(err, "failed to set record", goerr.V("key", key))
	}
	return nil
}

func (f *Firestore) Remove(ctx context.Context, key string) error {
	ref, err := f.doc(key)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete record", goerr.V("key", key))
	}
	return nil
}

func (f *Firestore) Keys(ctx context.Context) ([]string, error) {
	iter := f.client.Collection(f.collection).DocumentRefs(ctx)
	var keys []string
	for {
		ref, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list records", goerr.V("collection", f.collection))
		}
		keys = append(keys, ref.ID)
	}
	return keys, nil
}

// Close the Firestore client
func (f *Firestore) Close() error {
	return f.client.Close()
}
