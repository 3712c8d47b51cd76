package main

import (
	"fmt"
	"log"
	"net/http"

	"coopledger/config"
	"coopledger/controllers"
	"coopledger/database"
	"coopledger/middleware"
	"coopledger/services"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	validate := validator.New()
	emailService := services.NewEmailService(cfg)
	auditService := services.NewAuditService(db.DB)
	savingsService := services.NewSavingsService(db.DB, validate)
	memberService := services.NewMemberService(db.DB, validate, auditService)
	userService := services.NewUserService(db.DB, validate, auditService)
	loanService := services.NewLoanService(db.DB, validate, savingsService, auditService, emailService)
	paymentService := services.NewPaymentService(db.DB, validate, savingsService, emailService)
	periodService := services.NewPeriodService(db.DB, auditService)
	dividendService := services.NewDividendService(db.DB, validate, savingsService, auditService, emailService)
	reconciliationService := services.NewReconciliationService(db.DB, validate, auditService, emailService)
	reportService := services.NewReportService(db.DB, periodService, dividendService)

	scheduler := services.NewSchedulerService(periodService, cfg)
	scheduler.Start()
	defer scheduler.Stop()
	log.Println("overdue sweep scheduler started")

	authController := controllers.NewAuthController(userService, cfg)
	memberController := controllers.NewMemberController(memberService, savingsService)
	loanController := controllers.NewLoanController(loanService)
	paymentController := controllers.NewPaymentController(paymentService)
	periodController := controllers.NewPeriodController(periodService)
	dividendController := controllers.NewDividendController(dividendService)
	reconciliationController := controllers.NewReconciliationController(reconciliationService)
	reportController := controllers.NewReportController(reportService)

	router := mux.NewRouter()
	router.Use(middleware.Recovery)
	router.Use(middleware.CORS)
	router.Use(middleware.RateLimit)
	router.Use(middleware.Logging)

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	}).Methods("GET")

	router.HandleFunc("/api/auth/signUp", authController.SignUp).Methods("POST")
	router.HandleFunc("/api/auth/signIn", authController.SignIn).Methods("POST")

	protected := router.PathPrefix("/api").Subrouter()
	protected.Use(middleware.AuthMiddleware([]byte(cfg.JWT.SecretKey)))

	// Staff accounts
	protected.HandleFunc("/users", authController.CreateUser).Methods("POST")
	protected.HandleFunc("/users/{id}/role", authController.ChangeRole).Methods("PUT")
	protected.HandleFunc("/users/{id}/deactivate", authController.DeactivateUser).Methods("POST")

	// Members and savings
	protected.HandleFunc("/members", memberController.Register).Methods("POST")
	protected.HandleFunc("/members", memberController.List).Methods("GET")
	protected.HandleFunc("/members/{id}", memberController.Get).Methods("GET")
	protected.HandleFunc("/members/{id}/deactivate", memberController.Deactivate).Methods("POST")
	protected.HandleFunc("/members/{id}/transactions", memberController.GetTransactions).Methods("GET")
	protected.HandleFunc("/savings/deposit", memberController.Deposit).Methods("POST")
	protected.HandleFunc("/savings/withdraw", memberController.Withdraw).Methods("POST")
	protected.HandleFunc("/savings/shareDeposit", memberController.ShareDeposit).Methods("POST")

	// Loans
	protected.HandleFunc("/loans", loanController.Apply).Methods("POST")
	protected.HandleFunc("/loans/{id}", loanController.GetLoan).Methods("GET")
	protected.HandleFunc("/loans/{id}/approve", loanController.Approve).Methods("POST")
	protected.HandleFunc("/loans/{id}/disburse", loanController.Disburse).Methods("POST")
	protected.HandleFunc("/loans/{id}/reject", loanController.Reject).Methods("POST")
	protected.HandleFunc("/loans/{id}/writeOff", loanController.WriteOff).Methods("POST")
	protected.HandleFunc("/loans/{id}/payoff", loanController.GetPayoff).Methods("GET")
	protected.HandleFunc("/loans/{id}/payments", paymentController.GetLoanPayments).Methods("GET")
	protected.HandleFunc("/members/{memberId}/loans", loanController.GetMemberLoans).Methods("GET")

	// Payments
	protected.HandleFunc("/payments", paymentController.Record).Methods("POST")
	protected.HandleFunc("/payments/composite", paymentController.RecordComposite).Methods("POST")

	// Period closing
	protected.HandleFunc("/periods/close", periodController.CloseMonth).Methods("POST")
	protected.HandleFunc("/periods/sweepOverdue", periodController.SweepOverdue).Methods("POST")
	protected.HandleFunc("/periods/balances", periodController.GetBalances).Methods("GET")

	// Dividends
	protected.HandleFunc("/dividends", dividendController.Calculate).Methods("POST")
	protected.HandleFunc("/dividends/{year}", dividendController.Get).Methods("GET")
	protected.HandleFunc("/dividends/{year}/distribute", dividendController.Distribute).Methods("POST")

	// Cash reconciliation
	protected.HandleFunc("/reconciliations", reconciliationController.Create).Methods("POST")
	protected.HandleFunc("/reconciliations/pending", reconciliationController.ListPending).Methods("GET")
	protected.HandleFunc("/reconciliations/canCloseDay", reconciliationController.CanCloseDay).Methods("GET")
	protected.HandleFunc("/reconciliations/{id}/approve", reconciliationController.Approve).Methods("POST")
	protected.HandleFunc("/reconciliations/{id}/reject", reconciliationController.Reject).Methods("POST")

	// Reports
	protected.HandleFunc("/reports/loanBalances", reportController.ExportLoanBalances).Methods("GET")
	protected.HandleFunc("/reports/dividends/{year}", reportController.ExportDividendRecipients).Methods("GET")

	port := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("server listening on %s", port)
	if err := http.ListenAndServe(port, router); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
