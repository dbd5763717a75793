package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"google.golang.org/genai"

	"github.com/lh-counsel/server/internal/agent/graph/conversations"
	"github.com/lh-counsel/server/internal/agent/graph/nodes"
	"github.com/lh-counsel/server/internal/agent/graph/observers"
	"github.com/lh-counsel/server/internal/agent/housing"
	"github.com/lh-counsel/server/internal/agent/loan"
	"github.com/lh-counsel/server/internal/agent/model"
	"github.com/lh-counsel/server/internal/agent/rag"
	"github.com/lh-counsel/server/internal/agent/router"
	logx "github.com/lh-counsel/server/pkg/logger"
)

// Runner executes one conversation turn through the compiled graph.
type Runner interface {
	Invoke(ctx context.Context, in model.TurnRequest) (*model.TurnResponse, error)
}

// Config holds everything needed to compose the counselling graph end-to-end.
// This is a convenience layer over GraphConfig that also constructs the chat
// models, the agents and the history manager.
type Config struct {
	Client       *genai.Client
	RouterModel  model.RouterModelConfig
	ChatModel    model.ChatModelConfig
	Router       model.RouterConfig
	Dialog       model.DialogConfig
	RAG          model.RAGConfig
	Conversation model.ConversationConfig

	Eligibility model.EligibilityFinder
	Regions     model.RegionResolver
	Notices     model.NoticeFinder
	Pricer      model.LoanPricer
	Retriever   model.PassageRetriever
}

// GraphConfig holds all configuration needed to build the graph
type GraphConfig struct {
	Router             nodes.IntentRouter
	Housing            nodes.DialogueAgent
	Loan               nodes.DialogueAgent
	DispatchOnClassify bool
	MaxReentries       int
}

// GraphBuilder handles the construction of the counselling graph
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.TurnRequest, model.TurnResponse]
}

type graphRunner struct {
	runnable compose.Runnable[model.TurnRequest, model.TurnResponse]
}

func (r *graphRunner) Invoke(ctx context.Context, in model.TurnRequest) (*model.TurnResponse, error) {
	out, err := r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// NewRunner wraps a compiled graph.
func NewRunner(runnable compose.Runnable[model.TurnRequest, model.TurnResponse]) Runner {
	return &graphRunner{runnable: runnable}
}

// BuildTurnGraph composes chat models, agents and the graph, and returns a Runner.
func BuildTurnGraph(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("genai client is nil")
	}
	if cfg.Eligibility == nil || cfg.Regions == nil || cfg.Notices == nil || cfg.Pricer == nil || cfg.Retriever == nil {
		return nil, fmt.Errorf("collaborators are not properly initialized")
	}

	cms, err := nodes.NewChatModels(ctx, cfg.Client, nodes.ChatModelConfig{
		RouterConf: &cfg.RouterModel,
		ChatConf:   &cfg.ChatModel,
	})
	if err != nil {
		return nil, err
	}

	mm := conversations.NewMessagesManager(cfg.Conversation)
	answerer := rag.NewAnswerer(cfg.Retriever, cms.Chat, cfg.RAG)

	runnable, err := BuildGraph(ctx, &GraphConfig{
		Router:             router.New(cms.Router, cfg.Router),
		Housing:            housing.New(cfg.Eligibility, cfg.Regions, cfg.Notices, answerer, mm, cfg.Dialog),
		Loan:               loan.New(cfg.Pricer, cms.Chat, mm, cfg.Dialog),
		DispatchOnClassify: cfg.Router.DispatchOnClassify,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Turn graph built successfully")
	return NewRunner(runnable), nil
}

// BuildGraph constructs and returns the compiled counselling graph
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.TurnRequest, model.TurnResponse], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.Router == nil || config.Housing == nil || config.Loan == nil {
		return nil, fmt.Errorf("router and agents are not properly initialized")
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.TurnRequest, model.TurnResponse](
			compose.WithGenLocalState(func(ctx context.Context) *model.AppState {
				return &model.AppState{}
			}),
		),
	}

	if err := builder.addNodes(); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}
	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() error {
	steps := []struct {
		key  string
		node *compose.Lambda
		opts []compose.GraphAddNodeOpt
	}{
		{nodes.NodeTurnInput, nodes.NewTurnInputNode(),
			[]compose.GraphAddNodeOpt{compose.WithStatePreHandler(nodes.NewTurnInputPreHandler())}},
		{nodes.NodeIntentRouter, nodes.NewIntentRouterNode(b.config.Router), nil},
		{nodes.NodeHousingAgent, nodes.NewAgentNode(b.config.Housing), nil},
		{nodes.NodeLoanAgent, nodes.NewAgentNode(b.config.Loan), nil},
		{nodes.NodeTurnOutput, nodes.NewTurnOutputNode(),
			[]compose.GraphAddNodeOpt{compose.WithStatePostHandler(nodes.NewTurnOutputPostHandler())}},
	}
	for _, s := range steps {
		if err := b.graph.AddLambdaNode(s.key, s.node, s.opts...); err != nil {
			logx.Error().Err(err).Str("node", s.key).Msg("Error adding node")
			return fmt.Errorf("error adding node %s: %w", s.key, err)
		}
	}
	return nil
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeTurnInput},
		{nodes.NodeTurnInput, nodes.NodeIntentRouter},
		{nodes.NodeTurnOutput, compose.END},
	}

	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			logx.Error().Err(err).Str("from", edge[0]).Str("to", edge[1]).Msg("Error adding edge")
			return fmt.Errorf("error adding edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// addBranches creates conditional routing branches
func (b *GraphBuilder) addBranches() error {
	intentBranch := compose.NewGraphBranch(
		nodes.NewIntentCondition(b.config.DispatchOnClassify),
		map[string]bool{
			nodes.NodeHousingAgent: true,
			nodes.NodeLoanAgent:    true,
			nodes.NodeTurnOutput:   true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeIntentRouter, intentBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding intent branch")
		return fmt.Errorf("error adding intent branch: %w", err)
	}

	for _, agent := range []string{nodes.NodeHousingAgent, nodes.NodeLoanAgent} {
		reentry := compose.NewGraphBranch(
			nodes.NewReentryCondition(agent, b.config.MaxReentries),
			map[string]bool{
				agent:                true,
				nodes.NodeTurnOutput: true,
			},
		)
		if err := b.graph.AddBranch(agent, reentry); err != nil {
			logx.Error().Err(err).Str("node", agent).Msg("Error adding re-entry branch")
			return fmt.Errorf("error adding re-entry branch for %s: %w", agent, err)
		}
	}

	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.TurnRequest, model.TurnResponse], error) {
	// input, router, agent passes and output
	maxSteps := 4 + b.config.MaxReentries
	if maxSteps < 10 {
		maxSteps = 10
	}

	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(maxSteps))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
