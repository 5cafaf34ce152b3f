package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"

	"github.com/lanikai/ice"
	"github.com/lanikai/ice/internal/rendezvous"
)

func main() {
	flag.Parse()
	if flagHelp {
		fmt.Print(helpString)
		os.Exit(0)
	}
	if !flagHost && flagPeer == "" {
		fmt.Fprintln(os.Stderr, "ice-probe: one of --host or --peer is required")
		fmt.Print(helpString)
		os.Exit(1)
	}

	sock, err := net.ListenUDP("udp", mustResolveUDP(flagLocalAddr))
	if err != nil {
		fatal("bind local socket: %v", err)
	}
	defer sock.Close()
	localAddr := sock.LocalAddr()
	fmt.Printf("Local RTP socket bound at %s\n", localAddr)

	agent := ice.NewAgentForOffer(flagHost, flagRTCPMux)

	var noop ice.OnEvent = func(ice.Event) {}
	agent.AddHostAddr(noop, ice.ComponentRTP, localAddr)

	if flagSTUNServer != "" {
		agent.AddSTUNServer(time.Now(), mustResolveUDP(flagSTUNServer))
	}

	rc, err := exchange(agent, localAddr)
	if err != nil {
		fatal("rendezvous: %v", err)
	}

	remoteCreds := ice.Credentials{Ufrag: rc.Ufrag, Pwd: rc.Pwd}
	if err := agent.SetRemoteData(remoteCreds, parseRemoteCandidates(rc.Candidates), rc.RTCPMux); err != nil {
		fatal("apply remote data: %v", err)
	}

	runLoop(agent, sock, localAddr)
}

func exchange(agent *ice.Agent, localAddr net.Addr) (rendezvous.Message, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	local := rendezvous.Message{
		Ufrag:      agent.Credentials().Ufrag,
		Pwd:        agent.Credentials().Pwd,
		RTCPMux:    flagRTCPMux,
		Candidates: sdpLines(agent.ICECandidates()),
	}

	if flagHost {
		fmt.Printf("Waiting for a peer on %s...\n", flagListenAddr)
		conn, err := rendezvous.Host(ctx, flagListenAddr)
		if err != nil {
			return rendezvous.Message{}, err
		}
		defer conn.Close()
		if err := conn.Send(local); err != nil {
			return rendezvous.Message{}, err
		}
		return conn.Receive()
	}

	conn, err := rendezvous.Join(ctx, flagPeer)
	if err != nil {
		return rendezvous.Message{}, err
	}
	defer conn.Close()
	remote, err := conn.Receive()
	if err != nil {
		return rendezvous.Message{}, err
	}
	if err := conn.Send(local); err != nil {
		return rendezvous.Message{}, err
	}
	return remote, nil
}

func sdpLines(cands []ice.Candidate) []string {
	lines := make([]string, len(cands))
	for i, c := range cands {
		lines[i] = c.String()
	}
	return lines
}

func parseRemoteCandidates(lines []string) []ice.Candidate {
	var out []ice.Candidate
	for _, line := range lines {
		c, err := ice.ParseCandidateSDP(line)
		if err != nil {
			warn("skipping unparseable remote candidate %q: %v", line, err)
			continue
		}
		out = append(out, c)
	}
	return out
}

func mustResolveUDP(addr string) *net.UDPAddr {
	a, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		fatal("resolve %s: %v", addr, err)
	}
	return a
}

func fatal(format string, args ...interface{}) {
	color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "ice-probe: "+format+"\n", args...)
	os.Exit(1)
}

func warn(format string, args ...interface{}) {
	color.New(color.FgYellow).Fprintf(os.Stderr, "ice-probe: "+format+"\n", args...)
}
