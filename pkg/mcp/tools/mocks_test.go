package tools

import (
	"context"

	"github.com/ekaya-inc/ekaya-guard/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-guard/pkg/services"
	sqlpkg "github.com/ekaya-inc/ekaya-guard/pkg/sql"
)

// mockDatabaseService implements services.DatabaseService for testing. It records the
// last request of each kind and returns the configured result or error.
type mockDatabaseService struct {
	err error

	queryResult *datasource.QueryResult
	ddlResult   *services.DDLResult
	tables      []string
	schema      *services.SchemaResult

	lastQuery  *services.ExecuteQueryRequest
	lastCreate *services.CreateTableRequest
	lastAlter  *services.AlterTableRequest
	lastDrop   *services.DropTableRequest
	lastUpdate *services.UpdateRecordsRequest
	lastDelete *services.DeleteRecordsRequest
	lastBulk   *services.BulkInsertRequest
	lastInsert *services.InsertRecordRequest
	lastTarget *services.Target
}

var _ services.DatabaseService = (*mockDatabaseService)(nil)

func (m *mockDatabaseService) ExecuteQuery(ctx context.Context, req *services.ExecuteQueryRequest) (*datasource.QueryResult, error) {
	m.lastQuery = req
	if m.err != nil {
		return nil, m.err
	}
	return m.queryResult, nil
}

func (m *mockDatabaseService) SecurityCheck(query string) sqlpkg.SecurityReport {
	return sqlpkg.GetSecurityReport(query)
}

func (m *mockDatabaseService) SecurityConfig() *services.SecurityConfigResult {
	return &services.SecurityConfigResult{
		SecurityPolicy:    sqlpkg.GetSecurityPolicy(),
		UpdateSafetyLimit: 1000,
		DeleteSafetyLimit: 100,
		MaxBulkRecords:    10000,
		DefaultBatchSize:  100,
	}
}

func (m *mockDatabaseService) CreateTable(ctx context.Context, req *services.CreateTableRequest) (*services.DDLResult, error) {
	m.lastCreate = req
	if m.err != nil {
		return nil, m.err
	}
	return m.ddlResult, nil
}

func (m *mockDatabaseService) AlterTable(ctx context.Context, req *services.AlterTableRequest) (*services.DDLResult, error) {
	m.lastAlter = req
	if m.err != nil {
		return nil, m.err
	}
	return m.ddlResult, nil
}

func (m *mockDatabaseService) DropTable(ctx context.Context, req *services.DropTableRequest) (*services.DDLResult, error) {
	m.lastDrop = req
	if m.err != nil {
		return nil, m.err
	}
	return m.ddlResult, nil
}

func (m *mockDatabaseService) UpdateRecords(ctx context.Context, req *services.UpdateRecordsRequest) (*services.UpdateResult, error) {
	m.lastUpdate = req
	if m.err != nil {
		return nil, m.err
	}
	return &services.UpdateResult{Success: true}, nil
}

func (m *mockDatabaseService) DeleteRecords(ctx context.Context, req *services.DeleteRecordsRequest) (*services.DeleteResult, error) {
	m.lastDelete = req
	if m.err != nil {
		return nil, m.err
	}
	return &services.DeleteResult{Success: true, Warning: services.DeleteWarning}, nil
}

func (m *mockDatabaseService) BulkInsert(ctx context.Context, req *services.BulkInsertRequest) (*services.BulkInsertResult, error) {
	m.lastBulk = req
	if m.err != nil {
		return nil, m.err
	}
	return &services.BulkInsertResult{Success: true, TotalInserted: len(req.Records)}, nil
}

func (m *mockDatabaseService) InsertRecord(ctx context.Context, req *services.InsertRecordRequest) (*services.InsertResult, error) {
	m.lastInsert = req
	if m.err != nil {
		return nil, m.err
	}
	return &services.InsertResult{Success: true}, nil
}

func (m *mockDatabaseService) ListTables(ctx context.Context, target *services.Target) ([]string, error) {
	m.lastTarget = target
	if m.err != nil {
		return nil, m.err
	}
	return m.tables, nil
}

func (m *mockDatabaseService) ExposeSchema(ctx context.Context, target *services.Target) (*services.SchemaResult, error) {
	m.lastTarget = target
	if m.err != nil {
		return nil, m.err
	}
	return m.schema, nil
}
