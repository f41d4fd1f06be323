package web

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/stockwallet/backend/internal/domain"
	"github.com/stockwallet/backend/internal/usecase"
)

type Server struct {
	router     *http.ServeMux
	server     *http.Server
	ledger     *usecase.LedgerService
	perf       *usecase.PerformanceService
	portfolios domain.PortfolioRepository
	brokers    domain.BrokerRepository
	logger     *zap.Logger
}

func NewServer(
	port int,
	ledger *usecase.LedgerService,
	perf *usecase.PerformanceService,
	portfolios domain.PortfolioRepository,
	brokers domain.BrokerRepository,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:     http.NewServeMux(),
		ledger:     ledger,
		perf:       perf,
		portfolios: portfolios,
		brokers:    brokers,
		logger:     logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: instrument(logger, s.router),
	}
	return s
}

func (s *Server) routes() {
	// Events
	s.router.HandleFunc("POST /events", s.handleAddEvent)
	s.router.HandleFunc("GET /events", s.handleListEvents)
	s.router.HandleFunc("GET /events/{id}", s.handleGetEvent)
	s.router.HandleFunc("PUT /events/{id}", s.handleUpdateEvent)
	s.router.HandleFunc("DELETE /events/{id}", s.handleDeleteEvent)

	// Portfolios
	s.router.HandleFunc("POST /portfolios", s.handleAddPortfolio)
	s.router.HandleFunc("GET /portfolios", s.handleListPortfolios)
	s.router.HandleFunc("GET /portfolios/performance", s.handlePerformance)
	s.router.HandleFunc("GET /portfolios/{id}", s.handleGetPortfolio)
	s.router.HandleFunc("PUT /portfolios/{id}", s.handleUpdatePortfolio)
	s.router.HandleFunc("DELETE /portfolios/{id}", s.handleDeletePortfolio)
	s.router.HandleFunc("GET /portfolios/{id}/positions", s.handlePortfolioPositions)

	// Brokers
	s.router.HandleFunc("POST /brokers", s.handleAddBroker)
	s.router.HandleFunc("GET /brokers", s.handleListBrokers)
	s.router.HandleFunc("GET /brokers/{id}", s.handleGetBroker)
	s.router.HandleFunc("PUT /brokers/{id}", s.handleUpdateBroker)
	s.router.HandleFunc("DELETE /brokers/{id}", s.handleDeleteBroker)

	// Positions
	s.router.HandleFunc("GET /positions", s.handleAllPositions)
	s.router.HandleFunc("GET /stocks/position/{symbol}", s.handleStockPosition)
}

// Handler exposes the routing tree with middleware, for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Start() error {
	s.logger.Info("starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
