package di

import (
	"testing"

	"go.uber.org/dig"

	"github.com/pangeo-forge/aws-bakery/internal/config"
	"github.com/pangeo-forge/aws-bakery/internal/deploy"
	"github.com/pangeo-forge/aws-bakery/internal/preflight"
)

// Test types for dependency injection

type database struct {
	Name string
}

type repository struct {
	DB *database
}

func testConfig() *config.Config {
	return &config.Config{
		Owner:                "pangeo-forge",
		Identifier:           "dev",
		Region:               "us-west-2",
		RunnerTokenSecretARN: "arn:aws:secretsmanager:us-west-2:111122223333:secret:bakery-token-AbCdEf",
		PrefectAuthToken:     "pcs-token",
		PrefectProject:       "pangeo-forge",
		AgentLabels:          []string{"aws", "dev"},
		BucketUserARN:        "arn:aws:iam::111122223333:user/bakery-flows",
		AgentCPU:             config.DefaultAgentCPU,
		AgentMemory:          config.DefaultAgentMemory,
		AgentImage:           config.DefaultAgentImage,
		AgentDesiredCount:    config.DefaultAgentDesiredCount,
		LogRetentionDays:     config.DefaultLogRetentionDays,
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		wantErr bool
	}{
		{
			name: "creates container with no extra providers",
		},
		{
			name: "creates container with providers",
			opts: []Option{
				WithProviders(func() *database {
					return &database{Name: "test-db"}
				}),
			},
		},
		{
			name: "rejects duplicate providers",
			opts: []Option{
				WithProviders(
					func() *database { return &database{Name: "db1"} },
					func() *database { return &database{Name: "db2"} },
				),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			container, err := New(tt.opts...)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if container == nil && !tt.wantErr {
				t.Error("New() returned nil container without error")
			}
		})
	}
}

func TestMustGet(t *testing.T) {
	t.Run("successfully retrieves dependency", func(t *testing.T) {
		container, err := New(
			WithProviders(func() *database {
				return &database{Name: "test-db"}
			}),
		)
		if err != nil {
			t.Fatalf("New() unexpected error: %v", err)
		}

		db := MustGet[*database](container)
		if db == nil || db.Name != "test-db" {
			t.Errorf("MustGet() = %v, want test-db", db)
		}
	})

	t.Run("panics when dependency not found", func(t *testing.T) {
		container, err := New()
		if err != nil {
			t.Fatalf("New() unexpected error: %v", err)
		}

		defer func() {
			if r := recover(); r == nil {
				t.Error("MustGet() did not panic")
			}
		}()

		_ = MustGet[*database](container)
	})
}

func TestWithProvidersResolvesNestedDependencies(t *testing.T) {
	container, err := New(
		WithProviders(
			func() *database { return &database{Name: "dev-db"} },
			func(db *database) *repository { return &repository{DB: db} },
		),
	)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	repo := MustGet[*repository](container)
	if repo.DB.Name != "dev-db" {
		t.Errorf("repository.DB.Name = %v, want dev-db", repo.DB.Name)
	}
}

// The core graph must resolve end to end from nothing but a loaded config.
func TestCoreGraphResolves(t *testing.T) {
	cfg := testConfig()
	container, err := New(
		WithProviders(func() *config.Config { return cfg }),
	)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	err = container.Invoke(func(deployer *deploy.Deployer, runner *preflight.Runner) {
		if deployer == nil {
			t.Error("nil deployer from container")
		}
		if runner == nil {
			t.Error("nil preflight runner from container")
		}
	})
	if err != nil {
		t.Fatalf("Invoke() unexpected error: %v", err)
	}
}

func TestContainerInterface(t *testing.T) {
	var _ Container = (*dig.Container)(nil)
}
