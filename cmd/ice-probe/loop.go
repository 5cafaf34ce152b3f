package main

import (
	"fmt"
	"net"
	"time"

	"github.com/fatih/color"

	"github.com/lanikai/ice"
)

// runLoop drives a single agent to connectivity over sock, printing state
// transitions as they happen. It owns the only goroutine beyond main: a
// reader pumping UDP datagrams into agent.Receive, while main's goroutine
// runs the Poll/Timeout cycle and performs whatever SendData events ask for.
func runLoop(agent *ice.Agent, sock *net.UDPConn, localAddr net.Addr) {
	incoming := make(chan ice.ReceivedPkt, 64)
	go readLoop(sock, localAddr, incoming)

	connected := make(chan struct{})
	var closedConnected bool

	onEvent := func(e ice.Event) {
		switch ev := e.(type) {
		case ice.SendData:
			if _, err := sock.WriteTo(ev.Data, ev.Target); err != nil {
				warn("write to %s: %v", ev.Target, err)
			}
		case ice.GatheringStateChanged:
			color.New(color.FgCyan).Printf("gathering: %s\n", ev.State)
			if ev.State == ice.GatheringComplete {
				if addr, ok := agent.DiscoveredAddr(ice.ComponentRTP); ok {
					color.New(color.FgCyan).Printf("server-reflexive address: %s\n", addr)
				}
			}
		case ice.ConnectionStateChanged:
			color.New(color.FgGreen).Printf("connection: %s\n", ev.State)
			if ev.State == ice.ConnectionConnected && !closedConnected {
				closedConnected = true
				close(connected)
			}
		case ice.CandidateDiscovered:
			color.New(color.FgYellow).Printf("candidate: %s\n", ev.Candidate.String())
		case ice.UseAddr:
			color.New(color.FgMagenta, color.Bold).Printf("selected pair: component %s -> %s\n", ev.Component, ev.Target)
		}
	}

	now := time.Now()
	for {
		select {
		case pkt := <-incoming:
			agent.Receive(onEvent, pkt)
		case <-connected:
			fmt.Println("connected; entering keepalive loop")
			connected = nil
		default:
		}

		now = time.Now()
		agent.Poll(now, onEvent)

		d, ok := agent.Timeout(now)
		if !ok || d > 200*time.Millisecond {
			d = 200 * time.Millisecond
		}
		if d < time.Millisecond {
			d = time.Millisecond
		}

		select {
		case pkt := <-incoming:
			agent.Receive(onEvent, pkt)
		case <-time.After(d):
		}
	}
}

func readLoop(sock *net.UDPConn, localAddr net.Addr, out chan<- ice.ReceivedPkt) {
	buf := make([]byte, 1500)
	for {
		n, src, err := sock.ReadFrom(buf)
		if err != nil {
			warn("read from socket: %v", err)
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		out <- ice.ReceivedPkt{
			Data:        data,
			Source:      src,
			Destination: localAddr,
			Component:   ice.ComponentRTP,
		}
	}
}
