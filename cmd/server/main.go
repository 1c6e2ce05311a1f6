/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the lending engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Create lending service with terms and metrics
  4. Configure HTTP router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port                 HTTP server port (default: 8080)
  -db                   SQLite database path (default: lending.db)
                        Use ":memory:" for in-memory database
  -interest-rate        Annual loan interest rate percent (default: 12)
  -interest-applicable  Whether loans accrue interest (default: true)
  -scheduler            Enable automatic payroll deductions (default: true)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/lending.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Interest-free loans on a different port
  ./server -port=3000 -interest-applicable=false

ENVIRONMENT:
  No environment variables currently. All config via flags.
  Future: DATABASE_URL, PORT, LOG_LEVEL

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sakethdamerla/li-hrms-sub005/api"
	"github.com/sakethdamerla/li-hrms-sub005/lending"
	"github.com/sakethdamerla/li-hrms-sub005/metrics"
	"github.com/sakethdamerla/li-hrms-sub005/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "lending.db", "SQLite database path")
	interestRate := flag.Float64("interest-rate", 12, "annual loan interest rate percent")
	interestApplicable := flag.Bool("interest-applicable", true, "whether loans accrue interest")
	schedulerEnabled := flag.Bool("scheduler", true, "enable automatic payroll deductions")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Lending terms
	loanTerms := lending.DefaultLoanTerms()
	loanTerms.InterestRate = decimal.NewFromFloat(*interestRate)
	loanTerms.InterestApplicable = *interestApplicable

	// Initialize service and handler
	svc := lending.NewService(store,
		lending.WithTerms(loanTerms, lending.DefaultAdvanceTerms()),
		lending.WithMetrics(metrics.New()),
	)
	handler := api.NewHandler(svc)

	// Create router
	router := api.NewRouter(handler)

	// Payroll deduction scheduler
	scheduler := api.NewPayrollScheduler(svc)
	if *schedulerEnabled {
		scheduler.Start()
		defer scheduler.Stop()
	}

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", *port)
		log.Printf("📊 API available at http://localhost:%d/api/loans", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
