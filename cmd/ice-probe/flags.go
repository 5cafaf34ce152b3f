package main

import (
	flag "github.com/spf13/pflag"
)

var (
	flagHost       bool
	flagPeer       string
	flagListenAddr string
	flagLocalAddr  string
	flagSTUNServer string
	flagRTCPMux    bool
	flagHelp       bool
)

func init() {
	flag.BoolVarP(&flagHost, "host", "H", false, "Wait for a peer to connect (controlling agent)")
	flag.StringVarP(&flagPeer, "peer", "p", "", "Rendezvous URL of a --host instance to join")
	flag.StringVarP(&flagListenAddr, "listen", "l", ":9000", "Rendezvous HTTP listen address, with --host")
	flag.StringVarP(&flagLocalAddr, "local", "a", "0.0.0.0:0", "Local UDP address to bind for RTP")
	flag.StringVarP(&flagSTUNServer, "stun-server", "s", "", "STUN server address for server-reflexive discovery")
	flag.BoolVarP(&flagRTCPMux, "rtcp-mux", "m", true, "Multiplex RTCP onto the RTP component")
	flag.BoolVarP(&flagHelp, "help", "h", false, "Print usage information and exit")
}

const helpString = `ice-probe drives two standalone ICE agents to connectivity over real
UDP sockets, exchanging credentials and candidates through a small
websocket rendezvous.

Usage:
  ice-probe --host [--listen :9000] [--stun-server host:3478]
  ice-probe --peer ws://host:9000/  [--stun-server host:3478]

Flags:
  -H, --host            Wait for a peer to connect (controlling agent)
  -p, --peer=URL         Rendezvous URL of a --host instance to join
  -l, --listen=ADDR      Rendezvous HTTP listen address, with --host (default ":9000")
  -a, --local=ADDR       Local UDP address to bind for RTP (default "0.0.0.0:0")
  -s, --stun-server=ADDR STUN server address for server-reflexive discovery
  -m, --rtcp-mux         Multiplex RTCP onto the RTP component (default true)
  -h, --help             Print this message and exit
`
