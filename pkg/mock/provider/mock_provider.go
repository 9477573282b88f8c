/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package provider

import (
	"context"
	"fmt"
)

// Provider mocks the framework as seen by the protocol clients.
type Provider struct {
	ServiceValue interface{}
	ServiceErr   error
	ServiceMap   map[string]interface{}
	InitiateFunc func(ctx context.Context, protocol string, params interface{}) ([]byte, error)
	ContinueFunc func(ctx context.Context, protocol, thid string, action interface{}) ([]byte, error)
}

// Service returns the service of the map, ServiceValue otherwise.
func (p *Provider) Service(id string) (interface{}, error) {
	if p.ServiceErr != nil {
		return nil, p.ServiceErr
	}

	if svc, ok := p.ServiceMap[id]; ok {
		return svc, nil
	}

	return p.ServiceValue, nil
}

// Initiate calls InitiateFunc.
func (p *Provider) Initiate(ctx context.Context, protocol string, params interface{}) ([]byte, error) {
	if p.InitiateFunc == nil {
		return nil, fmt.Errorf("initiate %s: not mocked", protocol)
	}

	return p.InitiateFunc(ctx, protocol, params)
}

// Continue calls ContinueFunc.
func (p *Provider) Continue(ctx context.Context, protocol, thid string, action interface{}) ([]byte, error) {
	if p.ContinueFunc == nil {
		return nil, fmt.Errorf("continue %s: not mocked", protocol)
	}

	return p.ContinueFunc(ctx, protocol, thid, action)
}
