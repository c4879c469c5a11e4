package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"tempinbox/backend/internal/auth"
	jwtpkg "tempinbox/backend/internal/auth/jwt"
	"tempinbox/backend/internal/config"
	"tempinbox/backend/internal/domain"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  token issue [user-id] [free|standard|premium]   签发开发用身份令牌")
	fmt.Println("  token hash <webhook-secret>                     生成 TEMPINBOX_WEBHOOK_SECRET_HASH")
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	switch os.Args[1] {
	case "issue":
		issue(os.Args[2:])
	case "hash":
		if len(os.Args) < 3 {
			usage()
		}
		hash, err := auth.HashSecret(os.Args[2])
		if err != nil {
			fmt.Printf("Failed to hash secret: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hash)
	default:
		usage()
	}
}

// issue 使用服务端相同的密钥签发令牌，只用于本地联调
func issue(args []string) {
	userID := uuid.NewString()
	if len(args) >= 1 {
		userID = args[0]
	}
	plan := domain.PlanFree
	if len(args) >= 2 {
		parsed, err := domain.ParsePlanName(args[1])
		if err != nil || parsed == domain.PlanAnonymous {
			fmt.Printf("Invalid plan: %s\n", args[1])
			os.Exit(1)
		}
		plan = parsed
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	manager := jwtpkg.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiry)
	token, expiresAt, err := manager.Issue(userID, string(plan))
	if err != nil {
		fmt.Printf("Failed to issue token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Token issued\n")
	fmt.Printf("  User:    %s\n", userID)
	fmt.Printf("  Plan:    %s\n", plan)
	fmt.Printf("  Expires: %s\n", expiresAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("\n%s\n", token)
}
