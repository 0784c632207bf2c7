// db_manager.go

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/jacl-coder/SkyGuard-Server/config"
	"github.com/jacl-coder/SkyGuard-Server/pkg/db"
)

func main() {
	// 解析命令行参数
	configPath := flag.String("config", "config/config.yaml", "配置文件路径")
	action := flag.String("action", "help", "操作类型: reset, init, summary, help")
	flag.Parse()

	if *action == "help" {
		showHelp()
		return
	}

	if err := config.LoadConfig(*configPath); err != nil {
		log.Fatal("加载配置失败", "err", err)
	}

	if err := db.InitPostgres(); err != nil {
		log.Fatal("初始化PostgreSQL失败", "err", err)
	}
	defer db.Close()

	switch *action {
	case "reset":
		log.Warn("正在重置数据库，这将删除所有回合记录")
		if err := db.DropAllTables(); err != nil {
			log.Fatal("重置数据库失败", "err", err)
		}
		log.Info("数据库重置完成")
	case "init":
		if err := db.InitAllTables(); err != nil {
			log.Fatal("初始化数据库表失败", "err", err)
		}
		log.Info("数据库初始化完成", "tables", "episode_records, agent_summary")
	case "summary":
		if err := printSummary(); err != nil {
			log.Fatal("查询汇总失败", "err", err)
		}
	default:
		log.Fatal("未知操作", "action", *action)
	}
}

// showHelp 显示帮助信息
func showHelp() {
	fmt.Println("SkyGuard 数据库管理工具")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  go run scripts/db_manager.go -action=<操作> [-config=<配置文件>]")
	fmt.Println()
	fmt.Println("操作:")
	fmt.Println("  reset    - 删除回合记录表和汇总视图")
	fmt.Println("  init     - 创建表结构")
	fmt.Println("  summary  - 按智能体输出回合汇总")
	fmt.Println("  help     - 显示此帮助信息")
}

// printSummary 输出 agent_summary 视图
func printSummary() error {
	rows, err := db.DB.Query(`
		SELECT agent_id, episodes, avg_return, best_return, total_hits, accuracy
		FROM agent_summary
		ORDER BY avg_return DESC
		LIMIT 20`)
	if err != nil {
		return err
	}
	defer rows.Close()

	fmt.Fprintf(os.Stdout, "%-24s %8s %10s %10s %8s %8s\n", "agent", "episodes", "avg", "best", "hits", "acc")
	for rows.Next() {
		var (
			agent               string
			episodes, hits      int
			avg, best, accuracy float64
		)
		if err := rows.Scan(&agent, &episodes, &avg, &best, &hits, &accuracy); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%-24s %8d %10.4f %10.4f %8d %8.3f\n", agent, episodes, avg, best, hits, accuracy)
	}
	return rows.Err()
}
