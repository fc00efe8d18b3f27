package store

import (
	"context"
)

// SchemaVersionSettingName is the instance setting that tracks the applied
// schema version.
const SchemaVersionSettingName = "schema_version"

// InstanceSetting is a named instance-wide setting.
type InstanceSetting struct {
	Name  string
	Value string
}

// FindInstanceSetting is the find condition for instance settings.
type FindInstanceSetting struct {
	Name *string
}

// DeleteInstanceSetting is the delete request for instance settings.
type DeleteInstanceSetting struct {
	Name string
}

// UpsertInstanceSetting creates or replaces an instance setting.
func (s *Store) UpsertInstanceSetting(ctx context.Context, upsert *InstanceSetting) (*InstanceSetting, error) {
	setting, err := s.driver.UpsertInstanceSetting(ctx, upsert)
	if err != nil {
		return nil, err
	}
	s.instanceSettingCache.Set(ctx, setting.Name, setting)
	return setting, nil
}

// GetInstanceSetting returns a setting by name, or nil when unset.
func (s *Store) GetInstanceSetting(ctx context.Context, name string) (*InstanceSetting, error) {
	if v, ok := s.instanceSettingCache.Get(ctx, name); ok {
		if setting, ok := v.(*InstanceSetting); ok {
			return setting, nil
		}
	}
	list, err := s.driver.ListInstanceSettings(ctx, &FindInstanceSetting{Name: &name})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	s.instanceSettingCache.Set(ctx, name, list[0])
	return list[0], nil
}

// ListInstanceSettings lists all instance settings.
func (s *Store) ListInstanceSettings(ctx context.Context, find *FindInstanceSetting) ([]*InstanceSetting, error) {
	return s.driver.ListInstanceSettings(ctx, find)
}

// DeleteInstanceSetting deletes a setting by name.
func (s *Store) DeleteInstanceSetting(ctx context.Context, delete *DeleteInstanceSetting) error {
	if err := s.driver.DeleteInstanceSetting(ctx, delete); err != nil {
		return err
	}
	s.instanceSettingCache.Delete(ctx, delete.Name)
	return nil
}

// GetSchemaVersion returns the stored schema version, empty when the
// database predates version tracking.
func (s *Store) GetSchemaVersion(ctx context.Context) (string, error) {
	setting, err := s.GetInstanceSetting(ctx, SchemaVersionSettingName)
	if err != nil {
		return "", err
	}
	if setting == nil {
		return "", nil
	}
	return setting.Value, nil
}

// SetSchemaVersion records the applied schema version.
func (s *Store) SetSchemaVersion(ctx context.Context, schemaVersion string) error {
	_, err := s.UpsertInstanceSetting(ctx, &InstanceSetting{
		Name:  SchemaVersionSettingName,
		Value: schemaVersion,
	})
	return err
}
