package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"time"

	enclave "github.com/edgebitio/nitro-enclaves-sdk-go"
	"github.com/mdlayher/vsock"

	"github.com/cloudx-io/vcgauction/auctionapi"
)

// AuctioneerServer accepts mechanism requests over vsock or TCP
type AuctioneerServer struct {
	cfg        Config
	keyManager *KeyManager

	// newAttester and listen are replaced in tests
	newAttester func() (Attester, error)
	listen      func() (net.Listener, error)
}

// NewAuctioneerServer creates a server using the NSM attester and the configured transport
func NewAuctioneerServer(cfg Config) *AuctioneerServer {
	s := &AuctioneerServer{
		cfg:         cfg,
		newAttester: getEnclaveAttester,
	}
	s.listen = s.defaultListener
	return s
}

// getEnclaveAttester attempts to get the NSM attester, returns error if not available
func getEnclaveAttester() (Attester, error) {
	handle, err := enclave.GetOrInitializeHandle()
	if err != nil {
		return nil, fmt.Errorf("NSM not available: %w", err)
	}
	return handle, nil
}

func (s *AuctioneerServer) defaultListener() (net.Listener, error) {
	switch s.cfg.Transport {
	case TransportTCP:
		listener, err := net.Listen("tcp", s.cfg.TCPAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to create tcp listener: %w", err)
		}
		log.Printf("INFO: Auctioneer listening on tcp %s", listener.Addr())
		return listener, nil
	default:
		listener, err := vsock.Listen(s.cfg.Port, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create vsock listener: %w", err)
		}
		log.Printf("INFO: Auctioneer listening on vsock port %d", s.cfg.Port)
		return listener, nil
	}
}

// Start generates the sealing key, opens the listener and serves until it closes
func (s *AuctioneerServer) Start() error {
	keyManager, err := NewKeyManager()
	if err != nil {
		return fmt.Errorf("failed to initialize key manager: %w", err)
	}
	s.keyManager = keyManager
	log.Printf("INFO: KeyManager initialized")

	listener, err := s.listen()
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Serve accepts connections on listener with a bounded worker pool.
// It returns nil once the listener is closed.
func (s *AuctioneerServer) Serve(listener net.Listener) error {
	defer func() {
		if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Printf("ERROR: Failed to close listener: %v", err)
		}
	}()

	semaphore := make(chan struct{}, s.cfg.MaxWorkers)
	log.Printf("INFO: Worker pool initialized with %d max concurrent workers", s.cfg.MaxWorkers)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Printf("ERROR: Failed to accept connection: %v", err)
			continue
		}

		// Acquire worker slot - immediate rejection if pool full
		select {
		case semaphore <- struct{}{}:
			go func(c net.Conn) {
				defer func() { <-semaphore }()
				s.handleConnection(c)
			}(conn)
		default:
			log.Printf("INFO: No workers available, rejecting connection (pool full)")
			if err := conn.Close(); err != nil {
				log.Printf("ERROR: Failed to close rejected connection: %v", err)
			}
		}
	}
}

func errorResponse(format string, args ...any) map[string]any {
	return map[string]any{
		"type":    auctionapi.TypeError,
		"message": fmt.Sprintf(format, args...),
	}
}

func (s *AuctioneerServer) handleConnection(conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: Panic recovered in handleConnection: %v", r)
		}
		if err := conn.Close(); err != nil {
			log.Printf("ERROR: Failed to close connection: %v", err)
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, conn); err != nil {
		log.Printf("ERROR: Failed to read request: %v", err)
		return
	}

	var baseReq struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(buf.Bytes(), &baseReq); err != nil {
		log.Printf("ERROR: Failed to decode base request: %v", err)
		return
	}

	log.Printf("INFO: Received request type: %s", baseReq.Type)

	response := s.dispatch(baseReq.Type, buf.Bytes())

	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.ReadTimeout))
	if err := json.NewEncoder(conn).Encode(response); err != nil {
		log.Printf("ERROR: Failed to encode response: %v", err)
	} else {
		log.Printf("INFO: Successfully sent response for %s", baseReq.Type)
	}
}

func (s *AuctioneerServer) dispatch(requestType string, raw []byte) any {
	switch requestType {
	case auctionapi.TypePing:
		return map[string]any{
			"type":      auctionapi.TypePong,
			"message":   "Auctioneer is healthy",
			"timestamp": time.Now().Unix(),
		}

	case auctionapi.TypeKeyRequest:
		attester, err := s.newAttester()
		if err != nil {
			log.Printf("ERROR: Key request failed: %v", err)
			return errorResponse("Failed to initialize TEE attester: %v", err)
		}
		keyResp, err := HandleKeyRequest(attester, s.keyManager)
		if err != nil {
			log.Printf("ERROR: Key request failed: %v", err)
			return errorResponse("Key request failed: %v", err)
		}
		return keyResp

	case auctionapi.TypeVCGRequest:
		if err := auctionapi.ValidateRequestJSON(raw); err != nil {
			log.Printf("ERROR: Rejected VCG request: %v", err)
			return errorResponse("Invalid VCG request: %v", err)
		}
		var req auctionapi.VCGRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			log.Printf("ERROR: Failed to decode VCG request: %v", err)
			return errorResponse("Failed to decode VCG request: %v", err)
		}
		attester, err := s.newAttester()
		if err != nil {
			log.Printf("ERROR: VCG processing failed: %v", err)
			return errorResponse("Failed to initialize TEE attester: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SolveTimeout)
		defer cancel()
		return ProcessVCG(ctx, attester, req, s.keyManager, s.cfg.ProcessSettings())

	default:
		return errorResponse("Unknown request type: %s", requestType)
	}
}
