// Copyright 2025 Certen Protocol
//
// HandshakeStateMachine: ClientHandler and ServerHandler drive the same
// attestation protocol from opposite ends. Both eagerly generate self
// evidence and assertions at construction, emit exactly one outgoing
// message, ingest exactly one incoming message, and produce a terminal
// AttestationState.

package attestation

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
)

// Message is the wire shape shared by AttestRequest and AttestResponse: an
// ID-keyed map of endorsed evidence and an ID-keyed map of assertions.
type Message struct {
	EndorsedEvidence map[string]EndorsedEvidence
	Assertions       map[string]Assertion
}

// AttestRequest is sent by the client (initiator).
type AttestRequest Message

// AttestResponse is sent by the server (responder).
type AttestResponse Message

// HandlerConfig configures a ClientHandler or ServerHandler.
type HandlerConfig struct {
	Direction           AttestationDirection
	Attesters           []Attester
	Endorsers           []Endorser
	AssertionGenerators []AssertionGenerator
	Registry            *VerifierRegistry
	Aggregator          ResultsAggregator
	Logger              *log.Logger
}

func (c *HandlerConfig) normalize(component string) {
	if c.Registry == nil {
		c.Registry = NewVerifierRegistry()
	}
	if c.Aggregator == nil {
		c.Aggregator = DefaultAggregator{}
	}
	if c.Logger == nil {
		c.Logger = newComponentLogger(component, nil)
	}
}

// core holds the state and behavior shared by ClientHandler and
// ServerHandler; the spec describes both as the same contract over opposite
// message directions.
type core struct {
	mu sync.Mutex

	direction  AttestationDirection
	registry   *VerifierRegistry
	aggregator ResultsAggregator
	logger     *log.Logger

	outgoing         Message
	outgoingEmitted  bool
	selfAssertions   map[string]BindableAssertion
	selfAssertionsKV map[string]Assertion

	verdict    *PeerAttestationVerdict
	finalized  bool
	bindingTok []byte
}

func buildCore(ctx context.Context, cfg HandlerConfig, component string) (*core, error) {
	cfg.normalize(component)

	endorsedEvidence := make(map[string]EndorsedEvidence, len(cfg.Attesters))
	for _, attester := range cfg.Attesters {
		evidence, err := attester.Quote(ctx)
		if err != nil {
			return nil, fmt.Errorf("attester %s: quote: %w", attester.ID(), err)
		}
		ee := EndorsedEvidence{Evidence: evidence}
		for _, endorser := range cfg.Endorsers {
			if endorser.ID() != attester.ID() {
				continue
			}
			endorsements, err := endorser.Endorse(ctx, evidence)
			if err != nil {
				return nil, fmt.Errorf("endorser %s: endorse: %w", endorser.ID(), err)
			}
			ee.Endorsements = endorsements
			break
		}
		endorsedEvidence[attester.ID()] = ee
	}

	assertions := make(map[string]Assertion, len(cfg.AssertionGenerators))
	bindable := make(map[string]BindableAssertion, len(cfg.AssertionGenerators))
	for _, gen := range cfg.AssertionGenerators {
		ba, err := gen.Generate(ctx)
		if err != nil {
			return nil, fmt.Errorf("assertion generator %s: generate: %w", gen.ID(), err)
		}
		if ba.Assertion.ID != gen.ID() {
			return nil, fmt.Errorf("assertion generator %s: %w", gen.ID(), ErrIDMismatch)
		}
		assertions[ba.Assertion.ID] = ba.Assertion
		bindable[ba.Assertion.ID] = *ba
	}

	return &core{
		direction:  cfg.Direction,
		registry:   cfg.Registry,
		aggregator: cfg.Aggregator,
		logger:     cfg.Logger,
		outgoing: Message{
			EndorsedEvidence: endorsedEvidence,
			Assertions:       assertions,
		},
		selfAssertions:   bindable,
		selfAssertionsKV: assertions,
	}, nil
}

func (c *core) takeOutgoing() (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outgoingEmitted {
		return Message{}, false
	}
	c.outgoingEmitted = true
	var ser BindingTokenSerializer
	c.bindingTok = append(c.bindingTok, ser.Serialize(c.selfAssertionsKV)...)
	return c.outgoing, true
}

func (c *core) putIncoming(ctx context.Context, msg Message) error {
	c.mu.Lock()
	if c.verdict != nil {
		c.mu.Unlock()
		return ErrAlreadyIngested
	}
	c.mu.Unlock()

	var ser BindingTokenSerializer
	tokenAppend := ser.Serialize(msg.Assertions)

	results, err := c.registry.MergeJoin(ctx, msg.EndorsedEvidence)
	if err != nil {
		return fmt.Errorf("merge-join: %w", err)
	}
	verdict := c.aggregator.Aggregate(c.direction, results)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.verdict != nil {
		return ErrAlreadyIngested
	}
	c.bindingTok = append(c.bindingTok, tokenAppend...)
	c.verdict = verdict
	c.logger.Printf("ingested peer message: %s", verdict)
	return nil
}

func (c *core) takeState() (*AttestationState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.finalized {
		return nil, ErrAlreadyFinalized
	}
	if c.verdict == nil {
		return nil, ErrNotComplete
	}

	verifiers := make(map[string]SessionBindingVerifier)
	ids := make([]string, 0, len(c.verdict.Results))
	for id := range c.verdict.Results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		result := c.verdict.Results[id]
		if !result.IsSuccess() {
			continue
		}
		provider, ok := c.registry.Provider(id)
		if !ok {
			continue
		}
		verifier, err := provider.Create(result)
		if err != nil {
			return nil, fmt.Errorf("session binding verifier for %s: %w", id, err)
		}
		verifiers[id] = verifier
	}

	c.verdict.MarkConsumed()
	c.finalized = true

	state := &AttestationState{
		PeerVerdict:                 c.verdict,
		SelfAssertions:              c.selfAssertions,
		PeerSessionBindingVerifiers: verifiers,
		BindingToken:                c.bindingTok,
	}
	return state, nil
}

// ClientHandler sends the initiating AttestRequest and receives the
// responder's AttestResponse.
type ClientHandler struct {
	*core
}

// NewClientHandler eagerly generates self-evidence, endorsements, and
// assertions, matching the spec's `create()` contract.
func NewClientHandler(ctx context.Context, cfg HandlerConfig) (*ClientHandler, error) {
	c, err := buildCore(ctx, cfg, "AttestationClient")
	if err != nil {
		return nil, err
	}
	return &ClientHandler{core: c}, nil
}

// GetOutgoingMessage returns the pre-built AttestRequest the first time it
// is called, and (nil, false) thereafter.
func (h *ClientHandler) GetOutgoingMessage() (*AttestRequest, bool) {
	msg, ok := h.takeOutgoing()
	if !ok {
		return nil, false
	}
	req := AttestRequest(msg)
	return &req, true
}

// PutIncomingMessage ingests the server's AttestResponse, runs the merge-
// join and aggregator, and stores the verdict.
func (h *ClientHandler) PutIncomingMessage(ctx context.Context, resp *AttestResponse) error {
	return h.putIncoming(ctx, Message(*resp))
}

// TakeAttestationState finalizes the handler. Callable at most once, and
// only after a verdict has been computed.
func (h *ClientHandler) TakeAttestationState() (*AttestationState, error) {
	return h.takeState()
}

// ServerHandler receives the client's AttestRequest and sends an
// AttestResponse.
type ServerHandler struct {
	*core
}

// NewServerHandler eagerly generates self-evidence, endorsements, and
// assertions, matching the spec's `create()` contract.
func NewServerHandler(ctx context.Context, cfg HandlerConfig) (*ServerHandler, error) {
	c, err := buildCore(ctx, cfg, "AttestationServer")
	if err != nil {
		return nil, err
	}
	return &ServerHandler{core: c}, nil
}

// GetOutgoingMessage returns the pre-built AttestResponse the first time it
// is called, and (nil, false) thereafter.
func (h *ServerHandler) GetOutgoingMessage() (*AttestResponse, bool) {
	msg, ok := h.takeOutgoing()
	if !ok {
		return nil, false
	}
	resp := AttestResponse(msg)
	return &resp, true
}

// PutIncomingMessage ingests the client's AttestRequest, runs the merge-join
// and aggregator, and stores the verdict.
func (h *ServerHandler) PutIncomingMessage(ctx context.Context, req *AttestRequest) error {
	return h.putIncoming(ctx, Message(*req))
}

// TakeAttestationState finalizes the handler. Callable at most once, and
// only after a verdict has been computed.
func (h *ServerHandler) TakeAttestationState() (*AttestationState, error) {
	return h.takeState()
}
