package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/five82/clanboard/internal/model"
)

// ServiceInstances is a handle on the service instances of one clan.
type ServiceInstances struct {
	root   *Clans
	clanID string
}

// List returns copies of the instances sorted by name.
func (s *ServiceInstances) List() ([]*model.ServiceInstance, error) {
	var out []*model.ServiceInstance
	err := s.root.view(func(t *tree) error {
		clan, err := t.loaded(s.clanID)
		if err != nil {
			return err
		}
		for _, inst := range clan.ServiceInstances() {
			out = append(out, inst.Clone())
		}
		return nil
	})
	return out, err
}

// Get returns a copy of the instance with the given name.
func (s *ServiceInstances) Get(name string) (*model.ServiceInstance, error) {
	var out *model.ServiceInstance
	err := s.root.view(func(t *tree) error {
		clan, err := t.loaded(s.clanID)
		if err != nil {
			return err
		}
		inst, ok := clan.Instance(name)
		if !ok {
			return fmt.Errorf("service instance %s: %w", name, ErrNotFound)
		}
		out = inst.Clone()
		return nil
	})
	return out, err
}

// OfService returns copies of the instances of a service sorted by name.
func (s *ServiceInstances) OfService(serviceID string) ([]*model.ServiceInstance, error) {
	var out []*model.ServiceInstance
	err := s.root.view(func(t *tree) error {
		clan, err := t.loaded(s.clanID)
		if err != nil {
			return err
		}
		if _, ok := clan.Service(serviceID); !ok {
			return fmt.Errorf("service %s: %w", serviceID, ErrUnknownService)
		}
		for _, inst := range clan.InstancesOfService(serviceID) {
			out = append(out, inst.Clone())
		}
		return nil
	})
	return out, err
}

// Activate makes the instance active and returns it. It returns nil, nil
// when the instance already is the active one.
func (s *ServiceInstances) Activate(name string) (*model.ServiceInstance, error) {
	var out *model.ServiceInstance
	err := s.root.update(func(t *tree) error {
		clan, err := t.loaded(s.clanID)
		if err != nil {
			return err
		}
		inst, ok := clan.Instance(name)
		if !ok {
			return fmt.Errorf("service instance %s: %w", name, ErrNotFound)
		}
		if clan.ActiveInstance == name {
			return nil
		}
		clan.ActiveInstance = name
		t.touch()
		out = inst.Clone()
		return nil
	})
	return out, err
}

// Deactivate clears the active instance.
func (s *ServiceInstances) Deactivate() error {
	return s.root.update(func(t *tree) error {
		clan, err := t.loaded(s.clanID)
		if err != nil {
			return err
		}
		if clan.ActiveInstance != "" {
			clan.ActiveInstance = ""
			t.touch()
		}
		return nil
	})
}

// Create creates the instance on the host and returns it without adding it
// to the clan. Use Add to create and add in one step.
func (s *ServiceInstances) Create(ctx context.Context, out model.ServiceInstanceOutput) (*model.ServiceInstance, error) {
	err := s.root.view(func(t *tree) error {
		clan, err := t.loaded(s.clanID)
		if err != nil {
			return err
		}
		if _, ok := clan.Service(out.ServiceID); !ok {
			return fmt.Errorf("service %s: %w", out.ServiceID, ErrUnknownService)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	inst := model.NewServiceInstance(out)
	if err := s.root.api.CreateServiceInstance(ctx, s.clanID, inst.Output()); err != nil {
		return nil, fmt.Errorf("create service instance %s: %w", out.Name, err)
	}
	return inst, nil
}

// Add creates the instance on the host and appends it to the clan.
func (s *ServiceInstances) Add(ctx context.Context, out model.ServiceInstanceOutput) (*model.ServiceInstance, error) {
	err := s.root.view(func(t *tree) error {
		clan, err := t.loaded(s.clanID)
		if err != nil {
			return err
		}
		if _, exists := clan.Instance(out.Name); exists {
			return fmt.Errorf("service instance %s: %w", out.Name, ErrDuplicateInstance)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	inst, err := s.Create(ctx, out)
	if err != nil {
		return nil, err
	}

	err = s.root.update(func(t *tree) error {
		clan, err := t.loaded(s.clanID)
		if err != nil {
			return err
		}
		if _, exists := clan.Instance(inst.Name); exists {
			return fmt.Errorf("service instance %s: %w", inst.Name, ErrDuplicateInstance)
		}
		clan.Instances = append(clan.Instances, inst.Clone())
		t.touch()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.root.logger.Info("service instance added", zap.String("clan", s.clanID),
		zap.String("instance", inst.Name), zap.String("service", inst.ServiceID))
	return inst, nil
}
