// main.go

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/jacl-coder/SkyGuard-Server/config"
	"github.com/jacl-coder/SkyGuard-Server/internal/models"
	"github.com/jacl-coder/SkyGuard-Server/internal/policy"
	"github.com/jacl-coder/SkyGuard-Server/internal/protocol"
	"github.com/jacl-coder/SkyGuard-Server/internal/sim"
	"github.com/jacl-coder/SkyGuard-Server/internal/stats"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径，为空时使用默认配置")
	episodes := flag.Int("episodes", 5, "运行的回合数")
	agent := flag.String("agent", "aim", "动作来源: aim, policy, idle")
	gain := flag.Float64("gain", 0.1, "aim 模式的瞄准增益")
	dump := flag.String("dump", "", "逐步写出观测帧的文件 (JSON lines)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatal("加载配置失败", "err", err)
		}
		cfg = loaded
	}
	if cfg.Episode.MaxSteps <= 0 {
		log.Fatal("无头运行需要 episode.max_steps > 0")
	}

	source, err := actionSource(cfg, *agent, *gain)
	if err != nil {
		log.Fatal("创建动作来源失败", "err", err)
	}

	var out *bufio.Writer
	if *dump != "" {
		f, err := os.Create(*dump)
		if err != nil {
			log.Fatal("创建输出文件失败", "err", err)
		}
		defer f.Close()
		out = bufio.NewWriter(f)
		defer out.Flush()
	}

	rec := stats.NewMemoryRecorder()
	s := sim.New(cfg,
		sim.WithActionSource(source),
		sim.WithArenaID("headless"),
		sim.WithEpisodeListener(func(res models.EpisodeResult) {
			res.AgentID = *agent
			rec.Record(context.Background(), res)
			log.Info("回合结束", "episode", res.EpisodeID, "steps", res.Steps,
				"return", fmt.Sprintf("%.4f", res.Return), "shots", res.Shots, "hits", res.Hits)
		}),
	)

	codec := protocol.JSONCodec{}
	for rec.Len() < *episodes {
		res := s.Step(cfg.Episode.FixedDelta)
		if out == nil {
			continue
		}
		data, err := codec.EncodeObservation(protocol.ConvertStepResultToFrame(res))
		if err != nil {
			log.Fatal("编码观测帧失败", "err", err)
		}
		out.Write(data)
		out.WriteByte('\n')
	}

	printSummary(rec)
}

// actionSource 按名称创建动作来源
func actionSource(cfg *config.Config, name string, gain float64) (sim.ActionSource, error) {
	switch name {
	case "aim":
		return sim.AimAssistSource{Gain: gain}, nil
	case "idle":
		return sim.ActionFunc(func([]float32) sim.Action { return sim.Action{} }), nil
	case "policy":
		inputs := sim.ObservationSize(cfg.Observation.MaxDrones)
		if cfg.Policy.WeightsPath == "" {
			log.Warn("未配置 policy.weights_path，使用随机初始化的网络")
			return policy.NewMLP(inputs, cfg.Policy.HiddenSize), nil
		}
		return policy.LoadMLP(cfg.Policy.WeightsPath, inputs, cfg.Policy.HiddenSize)
	default:
		return nil, fmt.Errorf("未知动作来源: %s", name)
	}
}

// printSummary 输出汇总
func printSummary(rec *stats.MemoryRecorder) {
	var ret float64
	var shots, hits int
	results := rec.Results()
	for _, r := range results {
		ret += r.Return
		shots += r.Shots
		hits += r.Hits
	}
	n := float64(len(results))
	acc := 0.0
	if shots > 0 {
		acc = float64(hits) / float64(shots)
	}
	fmt.Printf("episodes=%d avg_return=%.4f shots=%d hits=%d accuracy=%.3f\n", len(results), ret/n, shots, hits, acc)

	top, _ := rec.Top(context.Background(), models.LeaderboardReturn, 3)
	for _, e := range top {
		fmt.Printf("  #%d %s return=%.4f\n", e.Rank, e.EpisodeID, e.Score)
	}
}
