package bot

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/OmnisXopowo/delta-helper-bot/internal/login"
	"github.com/OmnisXopowo/delta-helper-bot/internal/watch"
	"github.com/bwmarrin/discordgo"
)

// loginTimeout bounds one QR-login attempt; the QR code itself expires
// remotely well within this window.
const loginTimeout = 3 * time.Minute

const helpText = `三角洲助手使用帮助：
1. 使用 /delta-login 登录三角洲账号，需要用手机QQ扫码
2. 使用 /delta-info 查看三角洲角色基本信息
3. 使用 /delta-password 查看今日密码门密码
4. 战绩播报：登录后会自动播报百万撤离或百万战损战绩`

// Slash command definitions
func (b *Bot) getCommandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "delta-help",
			Description: "显示三角洲助手的使用帮助",
		},
		{
			Name:        "delta-login",
			Description: "扫码登录三角洲账号并开启战绩播报",
		},
		{
			Name:        "delta-info",
			Description: "查看已绑定三角洲账号的角色信息",
		},
		{
			Name:        "delta-password",
			Description: "查看今日密码门密码",
		},
	}
}

// registerCommands registers all slash commands with Discord
func (b *Bot) registerCommands() error {
	slog.Info("Registering slash commands")

	commandDefinitions := b.getCommandDefinitions()
	registeredCommands := make([]*discordgo.ApplicationCommand, 0, len(commandDefinitions))

	for _, cmd := range commandDefinitions {
		registered, err := b.session.ApplicationCommandCreate(
			b.session.State.User.ID,
			"", // Empty string = global command
			cmd,
		)
		if err != nil {
			return fmt.Errorf("failed to register command %s: %w", cmd.Name, err)
		}
		registeredCommands = append(registeredCommands, registered)
		slog.Debug("Registered command", "name", cmd.Name)
	}

	b.commands = registeredCommands
	slog.Info("Slash commands registered", "count", len(registeredCommands))
	return nil
}

// handleHelp handles the /delta-help command
func (b *Bot) handleHelp(s *discordgo.Session, i *discordgo.InteractionCreate) {
	respondWithMessage(s, i, helpText)
}

// handleLogin handles the /delta-login command. It streams the QR image to
// the invoking channel, drives the poll loop to a terminal outcome, and on
// success persists the account and installs its watch timer.
func (b *Bot) handleLogin(s *discordgo.Session, i *discordgo.InteractionCreate) {
	// Respond immediately to avoid timeout
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})

	userID := interactionUserID(i)

	// Broadcasts go to the channel the login came from; a DM login means no
	// broadcast target.
	channelID := ""
	if i.GuildID != "" {
		channelID = i.ChannelID
	}

	ctx, cancel := context.WithTimeout(context.Background(), loginTimeout)
	defer cancel()

	session, err := b.flow.Start(ctx)
	if err != nil {
		b.editResponse(s, i, fmt.Sprintf("获取二维码失败：%s", err.Error()))
		return
	}

	_, err = s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: "请使用手机QQ扫描二维码完成登录",
		Files: []*discordgo.File{
			{
				Name:        "qrcode.png",
				ContentType: "image/png",
				Reader:      bytes.NewReader(session.Image),
			},
		},
	})
	if err != nil {
		slog.Error("Failed to send QR image", "user", userID, "error", err)
	}

	result := b.flow.Await(ctx, userID, channelID, session)
	if result.Outcome != login.Success {
		b.editResponse(s, i, result.Reason)
		return
	}

	if err := b.repo.UpsertAccount(result.Account); err != nil {
		slog.Error("Failed to save account", "user", userID, "error", err)
		b.editResponse(s, i, "保存用户数据失败，请查看日志")
		return
	}

	b.scheduler.Install(userID, result.PlayerName)

	b.editResponse(s, i, fmt.Sprintf(
		"登录成功，角色名：%s，现金：%s\n登录有效期60天，在小程序登录会使这里的登录状态失效",
		result.PlayerName, watch.ReadableAmount(result.Money)))
}

// handleInfo handles the /delta-info command
func (b *Bot) handleInfo(s *discordgo.Session, i *discordgo.InteractionCreate) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})

	userID := interactionUserID(i)

	acct, err := b.repo.GetAccount(userID)
	if err != nil {
		slog.Error("Failed to load account", "user", userID, "error", err)
		b.editResponse(s, i, "查询账号数据失败，请查看日志")
		return
	}
	if acct == nil {
		b.editResponse(s, i, "未绑定三角洲账号，请先用 /delta-login 命令登录")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	info, err := b.client.GetPlayerInfo(ctx, acct.Credentials())
	if err != nil {
		b.editResponse(s, i, fmt.Sprintf("查询角色信息失败：%s", err.Error()))
		return
	}

	b.editResponse(s, i, fmt.Sprintf("角色名：%s，现金：%s",
		info.CharacterName(), watch.ReadableAmount(int64(info.Money))))
}

// handlePassword handles the /delta-password command. Any bound account can
// answer, so accounts are tried in turn until one yields data.
func (b *Bot) handlePassword(s *discordgo.Session, i *discordgo.InteractionCreate) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})

	accounts, err := b.repo.ListAccounts()
	if err != nil {
		slog.Error("Failed to list accounts", "error", err)
		b.editResponse(s, i, "查询账号数据失败，请查看日志")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, acct := range accounts {
		passwords, err := b.client.GetDailyPassword(ctx, acct.Credentials())
		if err != nil {
			slog.Debug("Daily password lookup failed", "user", acct.UserID, "error", err)
			continue
		}
		if len(passwords) == 0 {
			continue
		}

		zones := make([]string, 0, len(passwords))
		for zone := range passwords {
			zones = append(zones, zone)
		}
		sort.Strings(zones)

		var sb strings.Builder
		for _, zone := range zones {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			fmt.Fprintf(&sb, "%s：%s", zone, passwords[zone])
		}
		b.editResponse(s, i, sb.String())
		return
	}

	b.editResponse(s, i, "所有已绑定账号已过期，请先用 /delta-login 命令登录至少一个账号")
}

// Helper functions

// interactionUserID resolves the invoking user for both guild and DM
// interactions.
func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func respondWithMessage(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
		},
	})
}

func (b *Bot) editResponse(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
	})
}
