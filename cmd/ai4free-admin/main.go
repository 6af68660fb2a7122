// 本文件用于离线管理命令入口：直接读写配置中的存储后端
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"ai4free/internal/config"
	"ai4free/internal/content"
	"ai4free/internal/kb"
	"ai4free/internal/kvstore"
	"ai4free/internal/topic"
)

const (
	exitCodeOK       = 0
	exitCodeUsage    = 1
	exitCodeStoreErr = 2
	exitCodeInvalid  = 3
)

type cliOptions struct {
	configPath string
	action     string
	target     string
	file       string
}

// collections 同一存储上的两类集合
type collections struct {
	store  kvstore.Store
	kb     *kb.Service
	topics *topic.Service
}

func main() {
	os.Exit(runWithArgs(os.Args[1:], os.Stdout, os.Stderr))
}

func runWithArgs(args []string, stdout io.Writer, stderr io.Writer) int {
	options, err := parseOptions(args, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "ai4free-admin 参数错误: %v\n", err)
		return exitCodeUsage
	}
	code, err := execute(context.Background(), options, stdout)
	if err == nil {
		return code
	}
	fmt.Fprintf(stderr, "ai4free-admin 执行失败: %v\n", err)
	return code
}

func parseOptions(args []string, stderr io.Writer) (cliOptions, error) {
	fs := flag.NewFlagSet("ai4free-admin", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "config.yaml", "配置文件路径")
	action := fs.String("action", "show", "操作类型：show|export|import|reset|keys")
	target := fs.String("target", "kb", "操作对象：kb|topics")
	file := fs.String("file", "", "export 的输出文件或 import 的输入文件，export 为空时输出到标准输出")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "用法：ai4free-admin -action <show|export|import|reset|keys> [-target <kb|topics>] [-file <path>] [-config <path>]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}

	options := cliOptions{
		configPath: strings.TrimSpace(*configPath),
		action:     strings.ToLower(strings.TrimSpace(*action)),
		target:     strings.ToLower(strings.TrimSpace(*target)),
		file:       strings.TrimSpace(*file),
	}
	switch options.target {
	case "kb", "topics":
	default:
		fs.Usage()
		return cliOptions{}, fmt.Errorf("不支持的 target: %s", options.target)
	}
	switch options.action {
	case "show", "export", "reset", "keys":
		return options, nil
	case "import":
		if options.file == "" {
			fs.Usage()
			return cliOptions{}, fmt.Errorf("import 操作必须传入 -file")
		}
		return options, nil
	default:
		fs.Usage()
		return cliOptions{}, fmt.Errorf("不支持的 action: %s", options.action)
	}
}

func openCollections(ctx context.Context, configPath string) (*collections, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	opts := kvstore.OptionsFromConfig(cfg)
	opts.Watch = false
	store, err := kvstore.Open(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &collections{
		store:  store,
		kb:     kb.NewService(store, kb.Options{Key: cfg.KnowledgeBaseKey}),
		topics: topic.NewService(store, topic.Options{Key: cfg.TopicKey}),
	}, nil
}

func execute(ctx context.Context, options cliOptions, stdout io.Writer) (int, error) {
	c, err := openCollections(ctx, options.configPath)
	if err != nil {
		return exitCodeStoreErr, err
	}
	defer c.store.Close()

	switch options.action {
	case "show":
		return handleShow(ctx, c, options.target, stdout)
	case "export":
		return handleExport(ctx, c, options, stdout)
	case "import":
		return handleImport(ctx, c, options, stdout)
	case "reset":
		if options.target == "topics" {
			err = c.topics.Reset(ctx)
		} else {
			err = c.kb.Reset(ctx)
		}
		if err != nil {
			return exitCodeStoreErr, err
		}
		fmt.Fprintf(stdout, "%s reset ok\n", options.target)
		return exitCodeOK, nil
	case "keys":
		keys, err := c.store.Keys(ctx)
		if err != nil {
			return exitCodeStoreErr, err
		}
		info := kvstore.Describe(c.store)
		fmt.Fprintf(stdout, "backend=%s location=%s keys=%d\n", info.Backend, info.Location, len(keys))
		for _, key := range keys {
			fmt.Fprintln(stdout, key)
		}
		return exitCodeOK, nil
	default:
		return exitCodeUsage, fmt.Errorf("不支持的 action: %s", options.action)
	}
}

func handleShow(ctx context.Context, c *collections, target string, stdout io.Writer) (int, error) {
	if target == "topics" {
		topics := content.SortTopics(c.topics.GetAll(ctx))
		fmt.Fprintf(stdout, "topics: %d\n", len(topics))
		for _, t := range topics {
			fmt.Fprintf(stdout, "%d. %s [%s] %s articles=%d\n", t.Order, t.ID, t.Category, t.Name, len(t.Articles))
		}
		return exitCodeOK, nil
	}
	items := content.SortKnowledgeBases(c.kb.GetAll(ctx))
	stats := content.ComputeStats(items)
	fmt.Fprintf(stdout, "knowledge bases: %d showOnHome=%d\n", stats.Total, stats.ShowOnHome)
	for _, item := range items {
		fmt.Fprintf(stdout, "%d. %s %s %s\n", item.Order, item.ID, item.Name, item.URL)
	}
	return exitCodeOK, nil
}

func handleExport(ctx context.Context, c *collections, options cliOptions, stdout io.Writer) (int, error) {
	var data []byte
	var err error
	if options.target == "topics" {
		data, err = json.MarshalIndent(c.topics.GetAll(ctx), "", "  ")
	} else {
		_, data, err = c.kb.Export(ctx)
	}
	if err != nil {
		return exitCodeStoreErr, err
	}
	if options.file == "" {
		_, _ = stdout.Write(append(data, '\n'))
		return exitCodeOK, nil
	}
	if err := os.WriteFile(options.file, data, 0o644); err != nil {
		return exitCodeStoreErr, fmt.Errorf("写入导出文件失败: %w", err)
	}
	fmt.Fprintf(stdout, "export ok: %s\n", options.file)
	return exitCodeOK, nil
}

// handleImport 与管理端保存一致：先校验，全部通过后才整体写入
func handleImport(ctx context.Context, c *collections, options cliOptions, stdout io.Writer) (int, error) {
	data, err := os.ReadFile(options.file)
	if err != nil {
		return exitCodeUsage, fmt.Errorf("读取导入文件失败: %w", err)
	}
	if options.target == "kb" {
		items, err := c.kb.SaveChanges(ctx, data)
		if err != nil {
			return importErrorCode(err), err
		}
		fmt.Fprintf(stdout, "import ok: %d knowledge bases\n", len(items))
		return exitCodeOK, nil
	}

	var topics []content.Topic
	if err := json.Unmarshal(data, &topics); err != nil || topics == nil {
		return exitCodeInvalid, fmt.Errorf("导入内容必须为专题数组")
	}
	saved, err := c.topics.SaveChanges(ctx, topics)
	if err != nil {
		return importErrorCode(err), err
	}
	fmt.Fprintf(stdout, "import ok: %d topics\n", len(saved))
	return exitCodeOK, nil
}

func importErrorCode(err error) int {
	if errors.Is(err, content.ErrInvalid) {
		return exitCodeInvalid
	}
	return exitCodeStoreErr
}
