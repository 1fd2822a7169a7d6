package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chat-widget/internal/log"
	"chat-widget/internal/models"
)

// MongoStore keeps messages in a collection and follows it with a change stream.
// Change streams need a replica set or a sharded cluster.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore constructs a MongoStore over coll.
func NewMongoStore(coll *mongo.Collection) *MongoStore {
	return &MongoStore{coll: coll}
}

type mongoDoc struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	Username string             `bson:"username"`
	Message  string             `bson:"message"`
	Date     time.Time          `bson:"date"`
}

func (d mongoDoc) toMessage() models.Message {
	return models.Message{
		ID:       d.ID.Hex(),
		Username: d.Username,
		Message:  d.Message,
		Date:     d.Date.UTC(),
	}
}

type changeDoc struct {
	OperationType string `bson:"operationType"`
	DocumentKey   struct {
		ID primitive.ObjectID `bson:"_id"`
	} `bson:"documentKey"`
	FullDocument *mongoDoc `bson:"fullDocument"`
}

// Create inserts a message and returns its ObjectID in hex.
func (s *MongoStore) Create(ctx context.Context, msg models.Message) (string, error) {
	res, err := s.coll.InsertOne(ctx, mongoDoc{Username: msg.Username, Message: msg.Message, Date: msg.Date.UTC()})
	if err != nil {
		return "", wrap("create", "", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", wrap("create", "", errors.New("unexpected inserted id type"))
	}
	return oid.Hex(), nil
}

// Update replaces the text of a message.
func (s *MongoStore) Update(ctx context.Context, id string, update models.MessageUpdate) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return wrap("update", id, ErrNotFound)
	}
	res, err := s.coll.UpdateByID(ctx, oid, bson.M{"$set": bson.M{"message": update.Message}})
	if err != nil {
		return wrap("update", id, err)
	}
	if res.MatchedCount == 0 {
		return wrap("update", id, ErrNotFound)
	}
	return nil
}

// Delete removes a message.
func (s *MongoStore) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return wrap("delete", id, ErrNotFound)
	}
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return wrap("delete", id, err)
	}
	if res.DeletedCount == 0 {
		return wrap("delete", id, ErrNotFound)
	}
	return nil
}

// QueryOrdered returns all messages ordered by date, then _id.
func (s *MongoStore) QueryOrdered(ctx context.Context) ([]models.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, wrap("query", "", err)
	}
	var docs []mongoDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, wrap("query", "", err)
	}
	msgs := make([]models.Message, 0, len(docs))
	for _, doc := range docs {
		msgs = append(msgs, doc.toMessage())
	}
	return msgs, nil
}

// Subscribe opens the change stream before the initial query so nothing in
// between is lost.
func (s *MongoStore) Subscribe(ctx context.Context, fn func(models.Batch)) error {
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	stream, err := s.coll.Watch(ctx, mongo.Pipeline{}, opts)
	if err != nil {
		return wrap("subscribe", "", err)
	}

	msgs, err := s.QueryOrdered(ctx)
	if err != nil {
		_ = stream.Close(context.Background())
		return wrap("subscribe", "", err)
	}
	initial := addedBatch(msgs)

	go func() {
		logger := log.L().With().Str("collection", s.coll.Name()).Logger()
		defer stream.Close(context.Background())
		fn(initial)

		for stream.Next(ctx) {
			var change changeDoc
			if err := stream.Decode(&change); err != nil {
				logger.Error().Err(err).Msg("decode change")
				continue
			}
			if change.OperationType == "invalidate" {
				logger.Warn().Msg("change stream invalidated")
				return
			}
			if ev, ok := eventFromChange(change); ok {
				fn(models.Batch{ev})
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("change stream ended")
		}
	}()
	return nil
}

func eventFromChange(change changeDoc) (models.ChangeEvent, bool) {
	id := change.DocumentKey.ID.Hex()
	switch change.OperationType {
	case "insert":
		if change.FullDocument == nil {
			return models.ChangeEvent{}, false
		}
		return models.ChangeEvent{Type: models.ChangeAdded, ID: id, Message: change.FullDocument.toMessage()}, true
	case "update", "replace":
		// the lookup finds nothing when the document was deleted in the meantime
		if change.FullDocument == nil {
			return models.ChangeEvent{}, false
		}
		return models.ChangeEvent{Type: models.ChangeModified, ID: id, Message: change.FullDocument.toMessage()}, true
	case "delete":
		return models.ChangeEvent{Type: models.ChangeRemoved, ID: id}, true
	default:
		return models.ChangeEvent{}, false
	}
}
