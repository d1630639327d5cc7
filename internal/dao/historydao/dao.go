// Package historydao records bakery lifecycle runs in DynamoDB. The table
// is an audit trail: writes are best-effort and reads power the history
// verb.
package historydao

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/savaki/ddb/v2"
	"github.com/segmentio/ksuid"
)

// TableName holds one record per lifecycle run across every identifier in
// the region.
const TableName = "pangeo-forge-bakery-deployments"

// Lifecycle verbs and the stack operations they performed.
const (
	VerbDeploy  = "DEPLOY"
	VerbDestroy = "DESTROY"

	OperationCreate = "CREATE"
	OperationUpdate = "UPDATE"
	OperationDelete = "DELETE"
)

// PK represents the partition key: bakery/{identifier}
type PK string

// NewPK creates a partition key for a bakery identifier
func NewPK(identifier string) PK {
	return PK("bakery/" + identifier)
}

// ParsePK parses a partition key into its identifier
func ParsePK(pk PK) (identifier string, err error) {
	s := string(pk)
	rest, found := strings.CutPrefix(s, "bakery/")
	if !found || rest == "" {
		return "", fmt.Errorf("invalid PK format: %s, expected bakery/{identifier}", s)
	}
	return rest, nil
}

// String returns the string representation
func (pk PK) String() string {
	return string(pk)
}

// Record represents a single lifecycle run. The SK is a KSUID, so records
// within a partition sort oldest first.
type Record struct {
	PK           PK     `ddb:"hash" dynamodbav:"pk"`  // bakery/{identifier}
	SK           string `ddb:"range" dynamodbav:"sk"` // KSUID
	Verb         string `dynamodbav:"verb"`           // DEPLOY|DESTROY
	StackName    string `dynamodbav:"stack_name"`
	Operation    string `dynamodbav:"operation"` // CREATE|UPDATE|DELETE
	Status       string `dynamodbav:"status"`    // terminal stack status
	TemplateHash string `dynamodbav:"template_hash,omitempty"`
	Error        string `dynamodbav:"error,omitempty"`
	StartedAt    int64  `dynamodbav:"started_at"`  // Unix timestamp
	FinishedAt   int64  `dynamodbav:"finished_at"` // Unix timestamp
}

// RecordInput contains the fields for one lifecycle run
type RecordInput struct {
	Identifier   string
	Verb         string
	StackName    string
	Operation    string
	Status       string
	TemplateHash string
	Error        string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// DAO provides data access operations for deployment history
type DAO struct {
	db    *ddb.DDB
	table *ddb.Table
}

// New creates a new DAO instance
func New(client *dynamodb.Client) *DAO {
	return NewWithTableName(client, TableName)
}

// NewWithTableName creates a DAO against a specific table. Used by tests.
func NewWithTableName(client *dynamodb.Client, tableName string) *DAO {
	db := ddb.New(client)
	table := db.MustTable(tableName, Record{})
	return &DAO{
		db:    db,
		table: table,
	}
}

// EnsureTable creates the history table on first use. PAY_PER_REQUEST: the
// table sees a handful of writes per deploy, not sustained traffic.
func (d *DAO) EnsureTable(ctx context.Context) error {
	if err := d.table.CreateTableIfNotExists(ctx); err != nil {
		return fmt.Errorf("failed to create history table: %w", err)
	}
	return nil
}

// Record writes one lifecycle run
func (d *DAO) Record(ctx context.Context, input RecordInput) (Record, error) {
	record := Record{
		PK:           NewPK(input.Identifier),
		SK:           ksuid.New().String(),
		Verb:         input.Verb,
		StackName:    input.StackName,
		Operation:    input.Operation,
		Status:       input.Status,
		TemplateHash: input.TemplateHash,
		Error:        input.Error,
		StartedAt:    input.StartedAt.Unix(),
		FinishedAt:   input.FinishedAt.Unix(),
	}

	if err := d.table.Put(&record).RunWithContext(ctx); err != nil {
		return Record{}, fmt.Errorf("failed to record deployment: %w", err)
	}

	return record, nil
}

// List returns the runs for an identifier, newest first. A limit of zero
// returns everything.
func (d *DAO) List(ctx context.Context, identifier string, limit int) ([]Record, error) {
	pk := NewPK(identifier)

	var records []Record
	err := d.table.Query("#PK = ?", pk.String()).
		FindAllWithContext(ctx, &records)
	if err != nil {
		return nil, fmt.Errorf("failed to query deployment history: %w", err)
	}

	// KSUIDs sort oldest first; the history verb wants newest first.
	sort.Slice(records, func(i, j int) bool {
		return records[i].SK > records[j].SK
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}
