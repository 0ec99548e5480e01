// Package dispatch implements the master's core.
/*
 * Copyright (c) 2024, ReadySKAHF. All rights reserved.
 */
package dispatch_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ReadySKAHF/gaussnet/api"
	"github.com/ReadySKAHF/gaussnet/api/wire"
	"github.com/ReadySKAHF/gaussnet/cmn/cos"
	"github.com/ReadySKAHF/gaussnet/dispatch"
	"github.com/ReadySKAHF/gaussnet/hk"
	"github.com/ReadySKAHF/gaussnet/tools/tassert"
	"github.com/ReadySKAHF/gaussnet/transport"
)

const waitFor = 10 * time.Second

func TestMain(m *testing.M) {
	cos.InitShortID(0)
	go hk.DefaultHK.Run()
	hk.WaitStarted()
	m.Run()
}

func startMaster(t *testing.T, policy string) (*dispatch.Master, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	m, err := dispatch.NewMaster(ctx, dispatch.Config{Port: 0, Policy: policy})
	tassert.CheckFatal(t, err)
	go m.Run()
	t.Cleanup(func() {
		m.Stop(nil)
		cancel()
	})
	return m, cos.JoinHostPort("127.0.0.1", m.Port())
}

// fakeWorker registers with the master and echoes every job back, statistics
// frame first, without any actual filtering.
type fakeWorker struct {
	t    *testing.T
	conn *transport.Conn
	port int

	mu        sync.Mutex
	got       []string
	completed int64
}

func startFakeWorker(t *testing.T, masterAddr string, port int) *fakeWorker {
	t.Helper()
	rx := transport.NewRx()
	conn, err := transport.Dial(context.Background(), masterAddr, rx)
	tassert.CheckFatal(t, err)
	fw := &fakeWorker{t: t, conn: conn, port: port}
	tassert.CheckFatal(t, conn.Send(wire.NewRegistration("127.0.0.1", port)))

	select {
	case rxm := <-rx.MsgCh:
		tassert.Fatalf(t, rxm.Msg.IsAck(), "expected an ack, got %s", rxm.Msg)
	case <-time.After(waitFor):
		t.Fatal("registration not acknowledged")
	}
	go fw.serve(rx)
	t.Cleanup(func() { conn.Close() })
	return fw
}

func (fw *fakeWorker) serve(rx *transport.Rx) {
	for rxm := range rx.MsgCh {
		if rxm.Msg.Type != wire.ImageRequest {
			continue
		}
		packet, err := rxm.Msg.Packet()
		if err != nil {
			continue
		}
		fw.mu.Lock()
		fw.got = append(fw.got, packet.PacketID)
		fw.completed++
		completed := fw.completed
		fw.mu.Unlock()

		fw.conn.Send(wire.NewStats(&wire.Stats{
			Port:                  fw.port,
			TasksCompleted:        completed,
			TotalProcessingTime:   float64(completed) * 0.01,
			AverageProcessingTime: 0.01,
		}))
		packet.SlavePort = fw.port
		fw.conn.Send(wire.NewImageResponse(packet))
	}
}

func (fw *fakeWorker) received() []string {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return append([]string(nil), fw.got...)
}

func submit(t *testing.T, client *api.Client, packetID string) <-chan *wire.ImagePacket {
	t.Helper()
	ch, err := client.Submit(&wire.ImagePacket{
		PacketID:   packetID,
		FileName:   packetID + ".png",
		ImageData:  []byte{1, 2, 3},
		Width:      10,
		Height:     10,
		Format:     "png",
		FilterSize: 3,
	})
	tassert.CheckFatal(t, err)
	return ch
}

func await(t *testing.T, ch <-chan *wire.ImagePacket) *wire.ImagePacket {
	t.Helper()
	select {
	case packet, ok := <-ch:
		tassert.Fatalf(t, ok, "connection lost while waiting for a response")
		return packet
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for a response")
		return nil
	}
}

func waitCondition(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitFor)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestRegistrationIdempotent(t *testing.T) {
	m, addr := startMaster(t, dispatch.PolicyRoundRobin)
	startFakeWorker(t, addr, 9100)
	startFakeWorker(t, addr, 9100) // same (ip, port): ignored

	waitCondition(t, "registration", func() bool {
		_, _, _, workers := m.Snapshot()
		return workers == 1
	})
	_, _, _, workers := m.Snapshot()
	tassert.Errorf(t, workers == 1, "worker list has length %d, want 1", workers)
}

func TestSingleJobRoundTrip(t *testing.T) {
	m, addr := startMaster(t, dispatch.PolicyRoundRobin)
	startFakeWorker(t, addr, 9100)

	client, err := api.NewClient(context.Background(), addr)
	tassert.CheckFatal(t, err)
	defer client.Close()

	packet := await(t, submit(t, client, "p1"))
	tassert.Errorf(t, packet.PacketID == "p1", "packetId %q round-tripped wrong", packet.PacketID)
	tassert.Errorf(t, packet.SlavePort == 9100, "slavePort %d, want 9100", packet.SlavePort)

	waitCondition(t, "counters", func() bool {
		received, completed, _, _ := m.Snapshot()
		return received == 1 && completed == 1
	})
	tassert.Errorf(t, m.NumBusy() == 0, "worker still busy after completion")
}

// with a single worker, back-to-back jobs queue and complete FIFO
func TestQueueFIFO(t *testing.T) {
	_, addr := startMaster(t, dispatch.PolicyRoundRobin)
	fw := startFakeWorker(t, addr, 9100)

	client, err := api.NewClient(context.Background(), addr)
	tassert.CheckFatal(t, err)
	defer client.Close()

	ch1 := submit(t, client, "p1")
	ch2 := submit(t, client, "p2")
	ch3 := submit(t, client, "p3")

	await(t, ch1)
	await(t, ch2)
	await(t, ch3)

	got := fw.received()
	tassert.Fatalf(t, len(got) == 3, "worker processed %d jobs, want 3", len(got))
	for i, want := range []string{"p1", "p2", "p3"} {
		tassert.Errorf(t, got[i] == want, "completion order[%d] = %q, want %q", i, got[i], want)
	}
}

// two free workers, sequential jobs: strict alternation in registry order
func TestRoundRobinAssignment(t *testing.T) {
	_, addr := startMaster(t, dispatch.PolicyRoundRobin)
	fw1 := startFakeWorker(t, addr, 9100)
	fw2 := startFakeWorker(t, addr, 9200)

	client, err := api.NewClient(context.Background(), addr)
	tassert.CheckFatal(t, err)
	defer client.Close()

	packetIDs := []string{"p1", "p2", "p3", "p4", "p5", "p6"}
	for _, id := range packetIDs {
		await(t, submit(t, client, id)) // wait so that both workers stay free at selection time
	}

	got1, got2 := fw1.received(), fw2.received()
	tassert.Fatalf(t, len(got1) == 3 && len(got2) == 3, "distribution %d/%d, want 3/3", len(got1), len(got2))
	for i, want := range []string{"p1", "p3", "p5"} {
		tassert.Errorf(t, got1[i] == want, "worker #1 order[%d] = %q, want %q", i, got1[i], want)
	}
	for i, want := range []string{"p2", "p4", "p6"} {
		tassert.Errorf(t, got2[i] == want, "worker #2 order[%d] = %q, want %q", i, got2[i], want)
	}
}

// a job arriving with no workers ever registered is dropped, not queued
func TestDropWithoutWorkers(t *testing.T) {
	m, addr := startMaster(t, dispatch.PolicyRoundRobin)

	client, err := api.NewClient(context.Background(), addr)
	tassert.CheckFatal(t, err)
	defer client.Close()

	_ = submit(t, client, "p1") // no response will ever arrive

	time.Sleep(300 * time.Millisecond) // let the drop happen
	received, _, queued, _ := m.Snapshot()
	tassert.Errorf(t, received == 0, "dropped job counted as received")
	tassert.Errorf(t, queued == 0, "dropped job was queued")
}

// an unknown packetId on a response increments completed and mutates no busy flag
func TestUnknownPacketID(t *testing.T) {
	m, addr := startMaster(t, dispatch.PolicyRoundRobin)
	fw := startFakeWorker(t, addr, 9100)

	fw.conn.Send(wire.NewImageResponse(&wire.ImagePacket{
		PacketID:  "nonexistent",
		SlavePort: fw.port,
	}))
	waitCondition(t, "the discarded response", func() bool {
		_, completed, _, _ := m.Snapshot()
		return completed == 1
	})
	tassert.Errorf(t, m.NumBusy() == 0, "busy flag mutated by an unknown packetId")
}

// when a worker dies mid-job its busy flag reverts, so capacity accounting
// stays truthful; the pending entry falls to the orphan sweep
func TestWorkerDisconnectMidJob(t *testing.T) {
	m, addr := startMaster(t, dispatch.PolicyRoundRobin)

	// a worker that registers and then goes silent
	rx := transport.NewRx()
	conn, err := transport.Dial(context.Background(), addr, rx)
	tassert.CheckFatal(t, err)
	tassert.CheckFatal(t, conn.Send(wire.NewRegistration("127.0.0.1", 9100)))
	select {
	case rxm := <-rx.MsgCh:
		tassert.Fatalf(t, rxm.Msg.IsAck(), "expected an ack")
	case <-time.After(waitFor):
		t.Fatal("registration not acknowledged")
	}

	client, err := api.NewClient(context.Background(), addr)
	tassert.CheckFatal(t, err)
	defer client.Close()

	_ = submit(t, client, "p1")
	waitCondition(t, "the assignment", func() bool { return m.NumBusy() == 1 })

	conn.Close()
	waitCondition(t, "the busy revert", func() bool { return m.NumBusy() == 0 })
}
