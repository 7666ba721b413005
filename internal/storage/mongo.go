package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const mongoBatch = 1000

// MongoSink stores every record tagged with the run id, so several runs can
// share one database.
type MongoSink struct {
	client    *mongo.Client
	documents *mongo.Collection
	rawHTML   *mongo.Collection
	outLinks  *mongo.Collection
	inLinks   *mongo.Collection
	urls      *mongo.Collection
	runID     string
	log       logrus.FieldLogger
}

func OpenMongo(ctx context.Context, uri, database, runID string, log logrus.FieldLogger) (*MongoSink, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(database)
	s := &MongoSink{
		client:    client,
		documents: db.Collection("documents"),
		rawHTML:   db.Collection("raw_html"),
		outLinks:  db.Collection("out_links"),
		inLinks:   db.Collection("in_links"),
		urls:      db.Collection("urls"),
		runID:     runID,
		log:       log,
	}

	byRun := mongo.IndexModel{Keys: bson.D{{Key: "run_id", Value: 1}, {Key: "url", Value: 1}}}
	for _, c := range []*mongo.Collection{s.documents, s.rawHTML, s.outLinks, s.inLinks, s.urls} {
		if _, err := c.Indexes().CreateOne(ctx, byRun); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("index %s: %w", c.Name(), err)
		}
	}
	log.WithField("database", database).WithField("run_id", runID).Info("connected to MongoDB")
	return s, nil
}

func (s *MongoSink) WriteDocument(ctx context.Context, doc Document) error {
	doc.RunID = s.runID
	res, err := s.documents.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("insert document %s: %w", doc.URL, err)
	}
	s.log.WithField("id", res.InsertedID).Debug("document inserted")
	return nil
}

func (s *MongoSink) WriteRawHTML(ctx context.Context, page RawPage) error {
	_, err := s.rawHTML.InsertOne(ctx, bson.M{"run_id": s.runID, "url": page.URL, "html": page.HTML})
	if err != nil {
		return fmt.Errorf("insert raw html %s: %w", page.URL, err)
	}
	return nil
}

func (s *MongoSink) WriteOutLinks(ctx context.Context, links LinkSet) error {
	if _, err := s.outLinks.InsertOne(ctx, s.linkDoc(links)); err != nil {
		return fmt.Errorf("insert out-links %s: %w", links.URL, err)
	}
	return nil
}

func (s *MongoSink) WriteInLinks(ctx context.Context, sets []LinkSet) error {
	docs := make([]any, 0, len(sets))
	for _, set := range sets {
		docs = append(docs, s.linkDoc(set))
	}
	return s.insertBatched(ctx, s.inLinks, docs)
}

func (s *MongoSink) WriteCrawled(ctx context.Context, urls []string) error {
	return s.insertBatched(ctx, s.urls, s.urlDocs(urls, true))
}

func (s *MongoSink) WriteDiscovered(ctx context.Context, urls []string) error {
	return s.insertBatched(ctx, s.urls, s.urlDocs(urls, false))
}

func (s *MongoSink) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoSink) linkDoc(set LinkSet) bson.M {
	links := set.Links
	if links == nil {
		links = []string{}
	}
	return bson.M{"run_id": s.runID, "url": set.URL, "links": links}
}

func (s *MongoSink) urlDocs(urls []string, crawled bool) []any {
	docs := make([]any, 0, len(urls))
	for _, u := range urls {
		docs = append(docs, bson.M{"run_id": s.runID, "url": u, "crawled": crawled})
	}
	return docs
}

func (s *MongoSink) insertBatched(ctx context.Context, c *mongo.Collection, docs []any) error {
	for start := 0; start < len(docs); start += mongoBatch {
		end := min(start+mongoBatch, len(docs))
		if _, err := c.InsertMany(ctx, docs[start:end]); err != nil {
			return fmt.Errorf("insert into %s: %w", c.Name(), err)
		}
	}
	return nil
}
