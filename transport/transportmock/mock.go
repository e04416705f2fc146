// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package transportmock is a gomock-generated-style mock of
// transport.Bus, checked in the way the teacher's validatorsmock and
// sendermock packages check in their generated/hand-rolled doubles.
package transportmock

import (
	"context"
	"reflect"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/luxfi/fedcounter/fedid"
	"github.com/luxfi/fedcounter/message"
)

// Bus is a mock of transport.Bus.
type Bus struct {
	ctrl     *gomock.Controller
	recorder *BusMockRecorder
}

// BusMockRecorder is the recorder for Bus.
type BusMockRecorder struct {
	mock *Bus
}

// NewBus returns a new mock Bus.
func NewBus(ctrl *gomock.Controller) *Bus {
	m := &Bus{ctrl: ctrl}
	m.recorder = &BusMockRecorder{m}
	return m
}

// EXPECT returns the recorder used to set expectations.
func (m *Bus) EXPECT() *BusMockRecorder {
	return m.recorder
}

func (m *Bus) Send(ctx context.Context, targetNodeID fedid.NodeID, msg message.Message) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Send", ctx, targetNodeID, msg)
	err, _ := ret[0].(error)
	return err
}

func (mr *BusMockRecorder) Send(ctx, targetNodeID, msg interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Send", reflect.TypeOf((*Bus)(nil).Send), ctx, targetNodeID, msg)
}

func (m *Bus) Broadcast(ctx context.Context, msg message.Message) int {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Broadcast", ctx, msg)
	n, _ := ret[0].(int)
	return n
}

func (mr *BusMockRecorder) Broadcast(ctx, msg interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Broadcast", reflect.TypeOf((*Bus)(nil).Broadcast), ctx, msg)
}

func (m *Bus) Poll(ctx context.Context, maxBatch int, waitDeadline time.Duration) ([]message.InboundMessage, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Poll", ctx, maxBatch, waitDeadline)
	msgs, _ := ret[0].([]message.InboundMessage)
	err, _ := ret[1].(error)
	return msgs, err
}

func (mr *BusMockRecorder) Poll(ctx, maxBatch, waitDeadline interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Poll", reflect.TypeOf((*Bus)(nil).Poll), ctx, maxBatch, waitDeadline)
}

func (m *Bus) Ack(ctx context.Context, deliveryToken string) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Ack", ctx, deliveryToken)
	err, _ := ret[0].(error)
	return err
}

func (mr *BusMockRecorder) Ack(ctx, deliveryToken interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Ack", reflect.TypeOf((*Bus)(nil).Ack), ctx, deliveryToken)
}

func (m *Bus) Close() error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Close")
	err, _ := ret[0].(error)
	return err
}

func (mr *BusMockRecorder) Close() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Close", reflect.TypeOf((*Bus)(nil).Close))
}
