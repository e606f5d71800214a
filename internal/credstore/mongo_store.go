package credstore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yeshanjun/pollux/internal/credential"
)

// MongoStore stores one document per credential in a "credentials"
// collection, grounded in the teacher's
// internal/credential/adapter/mongodb_repo_cred.go (upsert-by-filter,
// transactional session pattern trimmed since a single-document upsert
// needs no transaction here).
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

type mongoCredDoc struct {
	Provider             credential.Provider `bson:"provider"`
	Identity             string              `bson:"identity"`
	ClientID              string              `bson:"client_id"`
	ClientSecret          string              `bson:"client_secret"`
	RefreshToken          string              `bson:"refresh_token"`
	AccessToken           string              `bson:"access_token"`
	AccessTokenExpiresAt  time.Time           `bson:"access_token_expires_at"`
	Status                credential.Status   `bson:"status"`
	LastError             string              `bson:"last_error"`
	ProviderExtras        []byte              `bson:"provider_extras,omitempty"`
}

func NewMongoStore(ctx context.Context, uri string) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("credstore: connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("credstore: ping mongo: %w", err)
	}
	db := client.Database("pollux")
	coll := db.Collection("credentials")
	if _, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "provider", Value: 1}, {Key: "identity", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return nil, fmt.Errorf("credstore: create mongo index: %w", err)
	}
	return &MongoStore{client: client, coll: coll}, nil
}

func (m *MongoStore) filter(key credential.Key) bson.M {
	return bson.M{"provider": key.Provider, "identity": key.Identity}
}

func (m *MongoStore) Upsert(ctx context.Context, cred *credential.Credential) error {
	if cred == nil {
		return fmt.Errorf("credstore: credential is nil")
	}
	doc := mongoCredDoc{
		Provider:             cred.Provider,
		Identity:             cred.Identity,
		ClientID:             cred.ClientID,
		ClientSecret:         cred.ClientSecret,
		RefreshToken:         cred.RefreshToken,
		AccessToken:          cred.AccessToken,
		AccessTokenExpiresAt: cred.AccessTokenExpiresAt,
		Status:               cred.Status,
		LastError:            cred.LastError,
		ProviderExtras:       cred.ProviderExtras,
	}
	_, err := m.coll.UpdateOne(ctx, m.filter(cred.Key()), bson.M{"$set": doc}, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("credstore: upsert credential: %w", err)
	}
	return nil
}

func (m *MongoStore) LoadAllEnabled(ctx context.Context) ([]*credential.Credential, error) {
	cursor, err := m.coll.Find(ctx, bson.M{"status": credential.StatusEnabled})
	if err != nil {
		return nil, fmt.Errorf("credstore: load enabled credentials: %w", err)
	}
	defer cursor.Close(ctx)

	var out []*credential.Credential
	for cursor.Next(ctx) {
		var doc mongoCredDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("credstore: decode credential: %w", err)
		}
		out = append(out, &credential.Credential{
			Provider:             doc.Provider,
			Identity:             doc.Identity,
			ClientID:             doc.ClientID,
			ClientSecret:         doc.ClientSecret,
			RefreshToken:         doc.RefreshToken,
			AccessToken:          doc.AccessToken,
			AccessTokenExpiresAt: doc.AccessTokenExpiresAt,
			Status:               doc.Status,
			LastError:            doc.LastError,
			ProviderExtras:       doc.ProviderExtras,
		})
	}
	return out, cursor.Err()
}

func (m *MongoStore) SetStatus(ctx context.Context, key credential.Key, status credential.Status, lastErr string) error {
	_, err := m.coll.UpdateOne(ctx, m.filter(key), bson.M{"$set": bson.M{"status": status, "last_error": lastErr}})
	if err != nil {
		return fmt.Errorf("credstore: set status: %w", err)
	}
	return nil
}

func (m *MongoStore) SetToken(ctx context.Context, key credential.Key, accessToken string, expiresAt time.Time) error {
	_, err := m.coll.UpdateOne(ctx, m.filter(key), bson.M{"$set": bson.M{
		"access_token":            accessToken,
		"access_token_expires_at": expiresAt,
	}})
	if err != nil {
		return fmt.Errorf("credstore: set token: %w", err)
	}
	return nil
}

func (m *MongoStore) Close() error {
	return m.client.Disconnect(context.Background())
}
