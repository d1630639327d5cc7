package historydao

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/savaki/ddb/v2"
	"github.com/savaki/ddb/v2/ddbtest"
	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Unit tests for key types

func TestNewPK(t *testing.T) {
	assert.Equal(t, PK("bakery/dev"), NewPK("dev"))
	assert.Equal(t, PK("bakery/great-barrier-reef"), NewPK("great-barrier-reef"))
}

func TestParsePK(t *testing.T) {
	tests := []struct {
		name           string
		pk             PK
		wantIdentifier string
		wantErr        bool
	}{
		{
			name:           "valid PK",
			pk:             PK("bakery/dev"),
			wantIdentifier: "dev",
		},
		{
			name:    "missing prefix",
			pk:      PK("dev"),
			wantErr: true,
		},
		{
			name:    "empty identifier",
			pk:      PK("bakery/"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identifier, err := ParsePK(tt.pk)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantIdentifier, identifier)
		})
	}
}

// Integration tests against local DynamoDB

type Data struct {
	DAO *DAO
}

func setup(t *testing.T) (ctx context.Context, data Data, cleanup func()) {
	ctx = context.Background()

	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion("us-west-2"),
		config.WithBaseEndpoint("http://localhost:8000"),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("blah", "blah", ""),
		),
	)
	assert.NoError(t, err)

	var (
		client    = dynamodb.NewFromConfig(cfg)
		db        = ddb.New(client)
		tableName = fmt.Sprintf("table-%v", ksuid.New().String())
		table     = db.MustTable(tableName, Record{})
		dao       = NewWithTableName(client, tableName)
	)

	err = table.CreateTableIfNotExists(ctx)
	assert.NoError(t, err)

	return ctx, Data{DAO: dao}, func() {
		_ = table.DeleteTableIfExists(ctx)
	}
}

func TestDAO(t *testing.T) {
	ddbtest.WithTable[Data](t, setup, func(t *testing.T, ctx context.Context, data Data) {
		dao := data.DAO

		t.Run("Record", func(t *testing.T) {
			started := time.Now().Add(-time.Minute)
			finished := time.Now()

			record, err := dao.Record(ctx, RecordInput{
				Identifier:   "dev",
				Verb:         VerbDeploy,
				StackName:    "pangeo-forge-bakery-dev",
				Operation:    OperationCreate,
				Status:       "CREATE_COMPLETE",
				TemplateHash: "abc123",
				StartedAt:    started,
				FinishedAt:   finished,
			})
			require.NoError(t, err)

			assert.Equal(t, "bakery/dev", record.PK.String())
			assert.NotEmpty(t, record.SK)
			assert.Equal(t, VerbDeploy, record.Verb)
			assert.Equal(t, OperationCreate, record.Operation)
			assert.Equal(t, started.Unix(), record.StartedAt)
			assert.Equal(t, finished.Unix(), record.FinishedAt)
		})

		t.Run("ListNewestFirst", func(t *testing.T) {
			identifier := "list-" + ksuid.New().String()

			var written []Record
			for i := 0; i < 3; i++ {
				record, err := dao.Record(ctx, RecordInput{
					Identifier: identifier,
					Verb:       VerbDeploy,
					StackName:  "pangeo-forge-bakery-" + identifier,
					Operation:  OperationUpdate,
					Status:     "UPDATE_COMPLETE",
					StartedAt:  time.Now(),
					FinishedAt: time.Now(),
				})
				require.NoError(t, err)
				written = append(written, record)
			}

			records, err := dao.List(ctx, identifier, 0)
			require.NoError(t, err)
			require.Len(t, records, 3)

			// Newest first: the last write comes back first.
			assert.Equal(t, written[2].SK, records[0].SK)
			assert.Equal(t, written[0].SK, records[2].SK)
		})

		t.Run("ListLimit", func(t *testing.T) {
			identifier := "limit-" + ksuid.New().String()

			for i := 0; i < 5; i++ {
				_, err := dao.Record(ctx, RecordInput{
					Identifier: identifier,
					Verb:       VerbDestroy,
					StackName:  "pangeo-forge-bakery-" + identifier,
					Operation:  OperationDelete,
					Status:     "DELETE_COMPLETE",
					StartedAt:  time.Now(),
					FinishedAt: time.Now(),
				})
				require.NoError(t, err)
			}

			records, err := dao.List(ctx, identifier, 2)
			require.NoError(t, err)
			assert.Len(t, records, 2)
		})

		t.Run("ListEmpty", func(t *testing.T) {
			records, err := dao.List(ctx, "never-deployed", 0)
			require.NoError(t, err)
			assert.Empty(t, records)
		})

		t.Run("RecordWithError", func(t *testing.T) {
			record, err := dao.Record(ctx, RecordInput{
				Identifier: "failed",
				Verb:       VerbDeploy,
				StackName:  "pangeo-forge-bakery-failed",
				Operation:  OperationCreate,
				Status:     "ROLLBACK_COMPLETE",
				Error:      "stack pangeo-forge-bakery-failed reached ROLLBACK_COMPLETE",
				StartedAt:  time.Now(),
				FinishedAt: time.Now(),
			})
			require.NoError(t, err)
			assert.NotEmpty(t, record.Error)
		})
	})
}
