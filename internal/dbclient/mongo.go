package dbclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"mongogen/internal/domain"
	"mongogen/internal/etl"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	defaultMongoPort = 27017
	// namespaceExistsCode is returned by create on an existing collection.
	namespaceExistsCode = 48
	disconnectTimeout   = 5 * time.Second
	maskedPassword      = "xxxxx"
)

// mongoDestination loads every group into a MongoDB collection.
type mongoDestination struct {
	uri    string
	logURI string
	dbName string
	opts   Options
	logger *slog.Logger
}

func newMongoDestination(conn *domain.DatabaseConnection, password string, opts Options) *mongoDestination {
	uri, dbName := buildMongoURI(conn, password)

	// Mask password in URI for logging
	logURI, _ := buildMongoURI(conn, maskedPassword)
	if password != "" {
		logURI = strings.ReplaceAll(logURI, password, maskedPassword)
	}
	return &mongoDestination{
		uri:    uri,
		logURI: logURI,
		dbName: dbName,
		opts:   opts,
		logger: opts.Logger.With("component", "mongo"),
	}
}

// buildMongoURI returns the connection URI and the database to load into.
//
// A host that is already a full connection string (Atlas mongodb+srv:// or
// standard mongodb://) is used as-is, with <password> placeholders
// replaced. Otherwise the URI is built from host, port and credentials,
// with the auth database passed as authSource.
func buildMongoURI(conn *domain.DatabaseConnection, password string) (string, string) {
	if strings.HasPrefix(conn.Host, "mongodb+srv://") || strings.HasPrefix(conn.Host, "mongodb://") {
		uri := conn.Host
		if password != "" {
			uri = strings.ReplaceAll(uri, "<password>", escapeUserinfo(password))
			uri = strings.ReplaceAll(uri, "<db_password>", escapeUserinfo(password))
		}
		dbName := conn.Database
		if dbName == "" {
			dbName = databaseFromURI(uri)
		}
		return uri, dbName
	}

	host := conn.Host
	if !strings.Contains(host, ":") && !strings.Contains(host, ",") {
		port := conn.Port
		if port == 0 {
			port = defaultMongoPort
		}
		host = host + ":" + strconv.Itoa(port)
	}

	u := url.URL{Scheme: "mongodb", Host: host, Path: "/" + conn.Database}
	if conn.Username != "" {
		u.User = url.UserPassword(conn.Username, password)
	}

	q := url.Values{}
	if conn.AuthDatabase != "" {
		q.Set("authSource", conn.AuthDatabase)
	}
	keys := make([]string, 0, len(conn.Extra))
	for k := range conn.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.Set(k, conn.Extra[k])
	}
	u.RawQuery = q.Encode()

	dbName := conn.Database
	if dbName == "" {
		dbName = "test"
	}
	return u.String(), dbName
}

// escapeUserinfo escapes a password for the userinfo part of a URI.
func escapeUserinfo(password string) string {
	return strings.TrimPrefix(url.UserPassword("", password).String(), ":")
}

// databaseFromURI extracts the database name from the URI path
// (e.g., mongodb+srv://...@host/mydb?...), defaulting to "test".
func databaseFromURI(uri string) string {
	rest := uri
	for _, prefix := range []string{"mongodb+srv://", "mongodb://"} {
		if strings.HasPrefix(rest, prefix) {
			rest = rest[len(prefix):]
			break
		}
	}
	if atIdx := strings.LastIndex(rest, "@"); atIdx != -1 {
		rest = rest[atIdx+1:]
	}
	if slashIdx := strings.Index(rest, "/"); slashIdx != -1 {
		path := rest[slashIdx+1:]
		if qIdx := strings.Index(path, "?"); qIdx != -1 {
			path = path[:qIdx]
		}
		if path != "" {
			return path
		}
	}
	return "test"
}

func (d *mongoDestination) Connect(ctx context.Context) (etl.Session, error) {
	d.logger.Info("connecting", "uri", d.logURI, "database", d.dbName)

	clientOpts := options.Client().
		ApplyURI(d.uri).
		SetConnectTimeout(d.opts.ConnectTimeout).
		SetServerSelectionTimeout(d.opts.ConnectTimeout)
	client, err := mongo.Connect(clientOpts)
	if err != nil {
		d.logger.Error("connect failed", "error", err)
		return nil, &etl.ConnectionError{Driver: "mongodb", Err: err}
	}

	pingCtx, cancel := context.WithTimeout(ctx, d.opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		d.logger.Error("ping failed", "error", err)
		disconnect(client)
		return nil, &etl.ConnectionError{Driver: "mongodb", Err: err}
	}

	d.logger.Info("successfully connected to MongoDB")
	return &mongoSession{
		client:   client,
		store:    &driverStore{db: client.Database(d.dbName)},
		validate: d.opts.ValidateSchema,
		logger:   d.logger,
	}, nil
}

// mongoStore is the slice of the driver a session uses.
type mongoStore interface {
	collectionExists(ctx context.Context, name string) (bool, error)
	createCollection(ctx context.Context, name string, validator bson.D) error
	insertOne(ctx context.Context, name string, doc bson.D) error
}

type driverStore struct {
	db *mongo.Database
}

func (s *driverStore) collectionExists(ctx context.Context, name string) (bool, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return false, err
	}
	return len(names) > 0, nil
}

func (s *driverStore) createCollection(ctx context.Context, name string, validator bson.D) error {
	opts := options.CreateCollection()
	if validator != nil {
		opts.SetValidator(validator).SetValidationLevel("moderate")
	}
	return s.db.CreateCollection(ctx, name, opts)
}

func (s *driverStore) insertOne(ctx context.Context, name string, doc bson.D) error {
	_, err := s.db.Collection(name).InsertOne(ctx, doc)
	return err
}

type mongoSession struct {
	client   *mongo.Client
	store    mongoStore
	validate bool
	logger   *slog.Logger
}

// DeclareCollection creates the collection when it does not exist yet.
// An existing collection is used as-is, whatever its prior shape.
func (s *mongoSession) DeclareCollection(ctx context.Context, name string, schema *etl.Schema) (etl.CollectionRef, error) {
	ref := etl.CollectionRef{Name: name, Schema: schema}

	exists, err := s.store.collectionExists(ctx, name)
	if err != nil {
		return ref, classify(fmt.Errorf("list collections: %w", err))
	}
	if exists {
		s.logger.Debug("collection exists", "collection", name)
		return ref, nil
	}

	var validator bson.D
	if s.validate && len(schema.Fields) > 0 {
		validator = jsonSchemaValidator(schema)
	}
	if err := s.store.createCollection(ctx, name, validator); err != nil && !isNamespaceExists(err) {
		return ref, classify(fmt.Errorf("create collection %s: %w", name, err))
	}
	s.logger.Debug("collection created", "collection", name, "fields", len(schema.Fields))
	return ref, nil
}

func (s *mongoSession) Insert(ctx context.Context, ref etl.CollectionRef, rec etl.Record) error {
	if err := s.store.insertOne(ctx, ref.Name, toDocument(rec)); err != nil {
		return classify(fmt.Errorf("insertOne: %w", err))
	}
	return nil
}

func (s *mongoSession) Disconnect(_ context.Context) error {
	if s.client == nil {
		return nil
	}
	return disconnect(s.client)
}

// classify marks errors meaning the server is gone (network failure,
// server selection timeout, closed client) as a lost connection. Anything
// else concerns the single operation.
func classify(err error) error {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) || errors.Is(err, mongo.ErrClientDisconnected) {
		return &etl.ConnectionError{Driver: "mongodb", Err: err}
	}
	return err
}

func disconnect(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	return client.Disconnect(ctx)
}

// toDocument converts a record to a BSON document in field order.
func toDocument(rec etl.Record) bson.D {
	fields := rec.Document()
	doc := make(bson.D, len(fields))
	for i, kv := range fields {
		doc[i] = bson.E{Key: kv.Key, Value: kv.Value}
	}
	return doc
}

// jsonSchemaValidator declares every schema field as a string. No field is
// required and additional fields are allowed.
func jsonSchemaValidator(schema *etl.Schema) bson.D {
	props := make(bson.D, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		props = append(props, bson.E{Key: f.Name, Value: bson.D{{Key: "bsonType", Value: "string"}}})
	}
	return bson.D{{Key: "$jsonSchema", Value: bson.D{
		{Key: "bsonType", Value: "object"},
		{Key: "properties", Value: props},
	}}}
}

func isNamespaceExists(err error) bool {
	var ce mongo.CommandError
	return errors.As(err, &ce) && ce.Code == namespaceExistsCode
}
