package request

import (
	"github.com/dshills/embedbridge/core"
	"github.com/google/uuid"
)

// CreateTenant builds a create_tenant request
func CreateTenant(name string) (core.CreateTenantRequest, error) {
	if err := requireTenant(name); err != nil {
		return core.CreateTenantRequest{}, err
	}
	return core.CreateTenantRequest{Name: name}, nil
}

// GetTenant builds a get_tenant request
func GetTenant(name string) (core.GetTenantRequest, error) {
	if err := requireTenant(name); err != nil {
		return core.GetTenantRequest{}, err
	}
	return core.GetTenantRequest{Name: name}, nil
}

// CreateDatabase builds a create_database request
func CreateDatabase(tenant, name string) (core.CreateDatabaseRequest, error) {
	if err := requireTenant(tenant); err != nil {
		return core.CreateDatabaseRequest{}, err
	}
	if err := validName("database", name); err != nil {
		return core.CreateDatabaseRequest{}, err
	}
	return core.CreateDatabaseRequest{Tenant: tenant, Name: name}, nil
}

// GetDatabase builds a get_database request
func GetDatabase(tenant, name string) (core.GetDatabaseRequest, error) {
	if err := requireTenant(tenant); err != nil {
		return core.GetDatabaseRequest{}, err
	}
	if err := requireName("database", name); err != nil {
		return core.GetDatabaseRequest{}, err
	}
	return core.GetDatabaseRequest{Tenant: tenant, Name: name}, nil
}

// DeleteDatabase builds a delete_database request
func DeleteDatabase(tenant, name string) (core.DeleteDatabaseRequest, error) {
	if err := requireTenant(tenant); err != nil {
		return core.DeleteDatabaseRequest{}, err
	}
	if err := requireName("database", name); err != nil {
		return core.DeleteDatabaseRequest{}, err
	}
	return core.DeleteDatabaseRequest{Tenant: tenant, Name: name}, nil
}

// ListDatabases builds a list_databases request
func ListDatabases(tenant string, limit, offset *int) (core.ListDatabasesRequest, error) {
	if err := requireTenant(tenant); err != nil {
		return core.ListDatabasesRequest{}, err
	}
	lim, off, err := window(limit, offset)
	if err != nil {
		return core.ListDatabasesRequest{}, err
	}
	return core.ListDatabasesRequest{Tenant: tenant, Limit: lim, Offset: off}, nil
}

func scopeOf(tenant, database string) error {
	if err := requireTenant(tenant); err != nil {
		return err
	}
	return requireName("database", database)
}

// CreateCollection builds a create_collection request
func CreateCollection(tenant, database, name string, metadata core.Metadata, config *core.CollectionConfiguration, getOrCreate bool) (core.CreateCollectionRequest, error) {
	if err := scopeOf(tenant, database); err != nil {
		return core.CreateCollectionRequest{}, err
	}
	if err := validName("collection", name); err != nil {
		return core.CreateCollectionRequest{}, err
	}
	if config != nil && config.HNSW != nil && config.HNSW.Space != "" && !config.HNSW.Space.Valid() {
		return core.CreateCollectionRequest{}, invalid("unknown distance space %q", config.HNSW.Space)
	}
	return core.CreateCollectionRequest{
		Tenant:        tenant,
		Database:      database,
		Name:          name,
		Metadata:      metadata,
		Configuration: config,
		GetOrCreate:   getOrCreate,
	}, nil
}

// GetCollection builds a get_collection request
func GetCollection(tenant, database, name string) (core.GetCollectionRequest, error) {
	if err := scopeOf(tenant, database); err != nil {
		return core.GetCollectionRequest{}, err
	}
	if err := requireName("collection", name); err != nil {
		return core.GetCollectionRequest{}, err
	}
	return core.GetCollectionRequest{Tenant: tenant, Database: database, Name: name}, nil
}

// DeleteCollection builds a delete_collection request
func DeleteCollection(tenant, database, name string) (core.DeleteCollectionRequest, error) {
	if err := scopeOf(tenant, database); err != nil {
		return core.DeleteCollectionRequest{}, err
	}
	if err := requireName("collection", name); err != nil {
		return core.DeleteCollectionRequest{}, err
	}
	return core.DeleteCollectionRequest{Tenant: tenant, Database: database, Name: name}, nil
}

// ListCollections builds a list_collections request
func ListCollections(tenant, database string, limit, offset *int) (core.ListCollectionsRequest, error) {
	if err := scopeOf(tenant, database); err != nil {
		return core.ListCollectionsRequest{}, err
	}
	lim, off, err := window(limit, offset)
	if err != nil {
		return core.ListCollectionsRequest{}, err
	}
	return core.ListCollectionsRequest{Tenant: tenant, Database: database, Limit: lim, Offset: off}, nil
}

// CountCollections builds a count_collections request
func CountCollections(tenant, database string) (core.CountCollectionsRequest, error) {
	if err := scopeOf(tenant, database); err != nil {
		return core.CountCollectionsRequest{}, err
	}
	return core.CountCollectionsRequest{Tenant: tenant, Database: database}, nil
}

// UpdateCollection builds an update_collection request. The distance space
// of a collection cannot be changed.
func UpdateCollection(id uuid.UUID, newName *string, newMetadata core.UpdateMetadata, newConfig *core.HNSWConfiguration) (core.UpdateCollectionRequest, error) {
	if err := requireCollectionID(id); err != nil {
		return core.UpdateCollectionRequest{}, err
	}
	if newName != nil {
		if err := validName("collection", *newName); err != nil {
			return core.UpdateCollectionRequest{}, err
		}
	}
	if newConfig != nil && newConfig.Space != "" {
		return core.UpdateCollectionRequest{}, invalid("distance space cannot be changed after creation")
	}
	return core.UpdateCollectionRequest{
		CollectionID:     id,
		NewName:          newName,
		NewMetadata:      newMetadata,
		NewConfiguration: newConfig,
	}, nil
}
