package main

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorcon/rcon"
)

// RCONPool provides a shared, mutex-protected RCON connection to the game
// server console with auto-reconnect.
type RCONPool struct {
	addr     string
	password string
	timeout  time.Duration

	mu   sync.Mutex
	conn *rcon.Conn
}

func NewRCONPool(host, port, password string) *RCONPool {
	return &RCONPool{
		addr:     net.JoinHostPort(host, port),
		password: password,
		timeout:  5 * time.Second,
	}
}

// Execute runs a console command, reconnecting once on failure.
func (p *RCONPool) Execute(cmd string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	conn, err := p.getConn()
	if err != nil {
		return "", fmt.Errorf("rcon connect: %w", err)
	}

	resp, err := conn.Execute(cmd)
	if err == nil {
		return resp, nil
	}

	// Connection may be stale
	p.dropConn()
	if conn, err = p.getConn(); err != nil {
		return "", fmt.Errorf("rcon reconnect: %w", err)
	}
	if resp, err = conn.Execute(cmd); err != nil {
		p.dropConn()
		return "", fmt.Errorf("rcon execute %q after reconnect: %w", cmd, err)
	}
	return resp, nil
}

func (p *RCONPool) getConn() (*rcon.Conn, error) {
	if p.conn != nil {
		return p.conn, nil
	}
	conn, err := rcon.Dial(p.addr, p.password,
		rcon.SetDialTimeout(p.timeout),
		rcon.SetDeadline(p.timeout),
	)
	if err != nil {
		return nil, err
	}
	p.conn = conn
	return conn, nil
}

func (p *RCONPool) dropConn() {
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
}

func (p *RCONPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}
