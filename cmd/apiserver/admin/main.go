package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"social-go/internal/activitylog"
	"social-go/internal/config"
	"social-go/internal/logging"
	"social-go/internal/models"
	"social-go/internal/services"
	"social-go/internal/storage"
)

// admin 运维命令行工具, 直接连接数据库。
type admin struct {
	cfgPath string
	cfg     config.Config
	logger  *slog.Logger
	db      *gorm.DB
	out     io.Writer
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &admin{out: out}
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Social-Go 管理工具",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", os.Getenv("SOCIAL_CONFIG"), "配置文件路径")

	root.AddCommand(
		a.reconcileCmd(),
		a.showConversationCmd(),
		a.listActivitiesCmd(),
		a.grantAdminCmd(),
		a.deleteUserCmd(),
		a.logsCmd(),
	)
	return root
}

func (a *admin) load() error {
	cfg, err := config.LoadConfig(a.cfgPath)
	if err != nil {
		return fmt.Errorf("无法加载配置: %w", err)
	}
	a.cfg = cfg
	a.logger = logging.NewWithWriter(os.Stderr, cfg.LogLevel, cfg.LogFormat).With("app", "admin")
	return nil
}

func (a *admin) openDB() (*gorm.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := storage.InitDB(a.cfg.Database, a.logger)
	if err != nil {
		return nil, fmt.Errorf("无法连接数据库: %w", err)
	}
	a.db = db
	return db, nil
}

func (a *admin) adminService() (services.AdminService, error) {
	db, err := a.openDB()
	if err != nil {
		return nil, err
	}
	userRepo := storage.NewGormUserRepository(db)
	friendRepo := storage.NewGormFriendRepository(db)
	activity := services.NewActivityService(userRepo, storage.NewGormActivityRepository(db), nil, "", nil, time.Now, a.logger)
	users := services.NewUserService(userRepo, friendRepo, a.logger)
	friends := services.NewFriendService(db, userRepo, friendRepo, activity, time.Now, a.logger)
	return services.NewAdminService(db, userRepo, users, friends, activity, a.logger), nil
}

func (a *admin) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *admin) reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile-friends",
		Short: "补齐单向的好友关系, 删除指向已删除用户的关系",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.adminService()
			if err != nil {
				return err
			}
			report, err := svc.ReconcileFriends(cmd.Context())
			fmt.Fprintf(a.out, "扫描 %d 条, 补齐 %d 条, 删除 %d 条\n", report.Scanned, report.Repaired, report.Pruned)
			return err
		},
	}
}

func (a *admin) showConversationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show-conversation <userA> <userB>",
		Short: "显示两个用户之间的会话摘要和消息",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			id := models.ConversationID(args[0], args[1])
			conversation, err := storage.NewGormConversationRepository(db).GetByID(ctx, id)
			if err != nil {
				return fmt.Errorf("获取会话 %s 失败: %w", id, err)
			}
			messages, err := storage.NewGormMessageRepository(db).ListByConversation(ctx, id)
			if err != nil {
				return fmt.Errorf("获取消息失败: %w", err)
			}

			fmt.Fprintf(a.out, "会话 %s\n", conversation.ID)
			fmt.Fprintln(a.out, "--------------------------------------")
			for _, p := range conversation.Participants() {
				fmt.Fprintf(a.out, "参与者: %s (%s)\n", p, conversation.ParticipantNames[p])
			}
			if conversation.HasMessages() && conversation.LastMessageAt != nil {
				fmt.Fprintf(a.out, "最后一条: %q 来自 %s 于 %s\n", conversation.LastMessageContent,
					conversation.LastMessageSenderID, conversation.LastMessageAt.Format(time.DateTime))
			}
			fmt.Fprintf(a.out, "消息数量: %d\n", len(messages))
			for _, m := range messages {
				read := " "
				if m.IsRead {
					read = "✓"
				}
				fmt.Fprintf(a.out, "[%s] %s %s -> %s: %s\n", read, m.SentAt.Format(time.DateTime), m.SenderID, m.ReceiverID, m.Content)
			}
			return nil
		},
	}
}

func (a *admin) listActivitiesCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list-activities",
		Short: "列出最近的用户活动",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.adminService()
			if err != nil {
				return err
			}
			activities, err := svc.RecentActivities(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, act := range activities {
				fmt.Fprintf(a.out, "%s  %-12s %-14s %s\n", act.Timestamp.Format(time.DateTime), act.UserName, act.Action, act.Details)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "最多显示条数")
	return cmd
}

func (a *admin) grantAdminCmd() *cobra.Command {
	var revoke bool
	cmd := &cobra.Command{
		Use:   "grant-admin <email>",
		Short: "授予 (或用 --revoke 撤销) 管理员权限",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.adminService()
			if err != nil {
				return err
			}
			if err := svc.GrantAdmin(cmd.Context(), args[0], !revoke); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s admin=%v\n", args[0], !revoke)
			return nil
		},
	}
	cmd.Flags().BoolVar(&revoke, "revoke", false, "撤销管理员权限")
	return cmd
}

func (a *admin) deleteUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-user <userID>",
		Short: "删除用户及其好友关系、活动参与和创建的活动",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.adminService()
			if err != nil {
				return err
			}
			if err := svc.DeleteUser(cmd.Context(), "admin-cli", args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "已删除用户 %s\n", args[0])
			return nil
		},
	}
}

// logs 子命令直接打开 badger 目录, API 服务器运行时目录被锁定。
func (a *admin) logsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "查看或清空本地活动日志 (需先停止 API 服务器)",
	}
	withLog := func(fn func(ctx context.Context, l *activitylog.Logger) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			store, err := activitylog.OpenBadger(activitylog.BadgerConfig{Path: a.cfg.ActivityLog.Path})
			if err != nil {
				return fmt.Errorf("无法打开活动日志 '%s': %w", a.cfg.ActivityLog.Path, err)
			}
			defer store.Close()
			return fn(cmd.Context(), activitylog.New(store, time.Now, a.logger))
		}
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "按时间倒序列出本地活动日志",
			Args:  cobra.NoArgs,
			RunE: withLog(func(ctx context.Context, l *activitylog.Logger) error {
				return a.printJSON(l.Logs(ctx))
			}),
		},
		&cobra.Command{
			Use:   "clear",
			Short: "清空本地活动日志",
			Args:  cobra.NoArgs,
			RunE: withLog(func(ctx context.Context, l *activitylog.Logger) error {
				l.Clear(ctx)
				fmt.Fprintln(a.out, "本地活动日志已清空")
				return nil
			}),
		},
	)
	return cmd
}
