package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

type mongoTransactor struct {
	client *mongo.Client
}

// NewMongoTransactor runs units of work in multi-document transactions,
// which require MongoDB to run as a replica set.
func NewMongoTransactor(client *mongo.Client) Transactor {
	return &mongoTransactor{client: client}
}

func (t *mongoTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := t.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// NewMongoStore wires every repository to the given database.
func NewMongoStore(client *mongo.Client, db *mongo.Database) *Store {
	return &Store{
		Issues: NewMongoIssueRepository(db),
		Flags:  NewMongoFlagRepository(db),
		Users:  NewMongoUserRepository(db),
		Tx:     NewMongoTransactor(client),
	}
}

// wrapTxError annotates err unless it carries a transient transaction label,
// which WithTransaction only recognizes on the unwrapped error.
func wrapTxError(err error, msg string) error {
	if le, ok := err.(mongo.LabeledError); ok && le.HasErrorLabel("TransientTransactionError") {
		return err
	}
	return fmt.Errorf("%s: %w", msg, err)
}
