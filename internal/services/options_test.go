package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"orchestrator-runner/internal/orchestrator"
	"orchestrator-runner/pkg/models"
)

func TestOptionService_ListFolders(t *testing.T) {
	t.Run("Should project folders in listing order", func(t *testing.T) {
		api := new(MockOrchestratorAPI)
		api.On("ListFolders", mock.Anything).Return([]models.Folder{
			{ID: 7, DisplayName: "Finance", FullyQualifiedName: "Shared/Finance"},
			{ID: 9, DisplayName: "HR"},
		}, nil)

		opts, err := NewOptionService(api, nil).ListFolders(context.Background())

		require.NoError(t, err)
		assert.Equal(t, []models.FolderOption{
			{Name: "Shared/Finance", ID: 7},
			{Name: "HR", ID: 9},
		}, opts)
	})

	t.Run("Should return an empty list for no folders", func(t *testing.T) {
		api := new(MockOrchestratorAPI)
		api.On("ListFolders", mock.Anything).Return([]models.Folder{}, nil)

		opts, err := NewOptionService(api, nil).ListFolders(context.Background())

		require.NoError(t, err)
		assert.Empty(t, opts)
	})

	t.Run("Should name the stage on failure and keep the kind", func(t *testing.T) {
		api := new(MockOrchestratorAPI)
		cause := orchestrator.NewError("transport failure", orchestrator.ErrTransport, errors.New("dial tcp"))
		api.On("ListFolders", mock.Anything).Return(nil, cause)

		_, err := NewOptionService(api, nil).ListFolders(context.Background())

		require.Error(t, err)
		assert.ErrorIs(t, err, orchestrator.ErrTransport)
		assert.Contains(t, err.Error(), "fetch failed: folders")
	})
}

func TestOptionService_ListProcesses(t *testing.T) {
	t.Run("Should keep only releases of the requested folder", func(t *testing.T) {
		api := new(MockOrchestratorAPI)
		api.On("ListReleases", mock.Anything, models.ReleaseFilter{FolderID: 7}).Return([]models.Release{
			{Key: "rel-1", ProcessKey: "InvoiceBot", ProcessVersion: "1.0.3", Name: "Invoice Bot", OrganizationUnitID: 7},
			{Key: "rel-2", ProcessKey: "Other", ProcessVersion: "2.0.0", Name: "Other", OrganizationUnitID: 8},
		}, nil)

		opts, err := NewOptionService(api, nil).ListProcesses(context.Background(), 7)

		require.NoError(t, err)
		require.Len(t, opts, 1)
		assert.Equal(t, "Invoice Bot", opts[0].Name)
		assert.Equal(t, invoiceRef, opts[0].Ref)
	})

	t.Run("Should report malformed responses as a processes failure", func(t *testing.T) {
		api := new(MockOrchestratorAPI)
		api.On("ListReleases", mock.Anything, mock.Anything).
			Return(nil, orchestrator.NewError("malformed response", orchestrator.ErrMalformedResponse, nil))

		_, err := NewOptionService(api, nil).ListProcesses(context.Background(), 7)

		assert.ErrorIs(t, err, orchestrator.ErrMalformedResponse)
		assert.Contains(t, err.Error(), "fetch failed: processes")
	})
}

func TestOptionService_ListEntryPoints(t *testing.T) {
	t.Run("Should address the exact package version", func(t *testing.T) {
		api := new(MockOrchestratorAPI)
		api.On("GetEntryPoints", mock.Anything, "InvoiceBot:1.0.3", int64(7)).Return([]models.EntryPoint{
			{UniqueID: "ep-1", Path: "Main.xaml", InputArguments: `{"type":"object"}`},
			{UniqueID: "ep-2", Path: "Batch.xaml"},
		}, nil)

		opts, err := NewOptionService(api, nil).ListEntryPoints(context.Background(), invoiceRef, 7)

		require.NoError(t, err)
		assert.Equal(t, []models.EntryPointOption{
			{Name: "Main.xaml", Ref: models.EntryPointRef{UniqueID: "ep-1", InputArgumentSchema: `{"type":"object"}`}},
			{Name: "Batch.xaml", Ref: models.EntryPointRef{UniqueID: "ep-2"}},
		}, opts)
		api.AssertExpectations(t)
	})
}

func TestOptionService_ResolveDefaultArguments(t *testing.T) {
	schema := `{"type":"object","properties":{"invoiceId":{"type":"string","default":"INV-0"},"retries":{"type":"integer","default":3},"note":{"type":"string"}}}`

	t.Run("Should synthesize defaults for the matching entry point", func(t *testing.T) {
		api := new(MockOrchestratorAPI)
		api.On("GetEntryPoints", mock.Anything, "InvoiceBot:1.0.3", int64(7)).Return([]models.EntryPoint{
			{UniqueID: "ep-0", Path: "Other.xaml"},
			{UniqueID: "ep-1", Path: "Main.xaml", InputArguments: schema},
		}, nil)

		args, err := NewOptionService(api, nil).ResolveDefaultArguments(context.Background(), invoiceRef, 7, models.EntryPointRef{UniqueID: "ep-1"})

		require.NoError(t, err)
		assert.Equal(t, `{"invoiceId":"INV-0","retries":3}`, string(args))
	})

	t.Run("Should fail with not found for an unknown entry point", func(t *testing.T) {
		api := new(MockOrchestratorAPI)
		api.On("GetEntryPoints", mock.Anything, mock.Anything, mock.Anything).Return([]models.EntryPoint{
			{UniqueID: "ep-1", Path: "Main.xaml"},
		}, nil)

		args, err := NewOptionService(api, nil).ResolveDefaultArguments(context.Background(), invoiceRef, 7, models.EntryPointRef{UniqueID: "missing"})

		assert.Nil(t, args)
		assert.ErrorIs(t, err, orchestrator.ErrNotFound)
	})

	t.Run("Should report an unparseable schema as malformed", func(t *testing.T) {
		api := new(MockOrchestratorAPI)
		api.On("GetEntryPoints", mock.Anything, mock.Anything, mock.Anything).Return([]models.EntryPoint{
			{UniqueID: "ep-1", InputArguments: "{not json"},
		}, nil)

		_, err := NewOptionService(api, nil).ResolveDefaultArguments(context.Background(), invoiceRef, 7, models.EntryPointRef{UniqueID: "ep-1"})

		assert.ErrorIs(t, err, orchestrator.ErrMalformedResponse)
		assert.Contains(t, err.Error(), "fetch failed: default arguments")
	})
}

func TestOptionService_ListReleases(t *testing.T) {
	t.Run("Should apply the default limit", func(t *testing.T) {
		api := new(MockOrchestratorAPI)
		api.On("ListReleases", mock.Anything, models.ReleaseFilter{ProcessKey: "InvoiceBot", Top: orchestrator.DefaultReleaseTop}).
			Return([]models.Release{{Key: "rel-1"}}, nil).Once()

		releases, err := NewOptionService(api, nil).ListReleases(context.Background(), models.ReleaseFilter{ProcessKey: "InvoiceBot"})

		require.NoError(t, err)
		assert.Len(t, releases, 1)
		api.AssertExpectations(t)
	})
}
