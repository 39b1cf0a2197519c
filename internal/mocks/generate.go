// Package mocks provides gomock implementations of the core ports for service tests.
//
// To regenerate after an interface change, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	repo := mocks.NewMockJobRepository(ctrl)
//	repo.EXPECT().GetByID(gomock.Any(), "job-1").Return(job, nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_repository_mock.go github.com/target/hpcjobs/internal/core JobRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_event_repository_mock.go github.com/target/hpcjobs/internal/core JobEventRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=usage_repository_mock.go github.com/target/hpcjobs/internal/core UsageRepository

// Scheduler boundary and filesystem workspace.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=scheduler_gateway_mock.go github.com/target/hpcjobs/internal/core SchedulerGateway
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=workspace_mock.go github.com/target/hpcjobs/internal/core Workspace

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=cache_repository_mock.go github.com/target/hpcjobs/internal/core CacheRepository
