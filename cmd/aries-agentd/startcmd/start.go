/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package startcmd

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hyperledger/aries-didcomm-go/pkg/common/log"
	"github.com/hyperledger/aries-didcomm-go/pkg/framework/aries"
	"github.com/hyperledger/aries-didcomm-go/pkg/framework/aries/defaults"
)

const (
	envPrefix = "ARIESD"

	// api host flag.
	agentHostFlagName      = "api-host"
	agentHostEnvKey        = "ARIESD_API_HOST"
	agentHostFlagShorthand = "a"
	agentHostFlagUsage     = "Admin API Host Name:Port." +
		" Alternatively, this can be set with the following environment variable: " + agentHostEnvKey

	// inbound host flag.
	agentInboundHostFlagName      = "inbound-host"
	agentInboundHostEnvKey        = "ARIESD_INBOUND_HOST"
	agentInboundHostFlagShorthand = "i"
	agentInboundHostFlagUsage     = "Inbound HTTP Host Name:Port. This is used internally to start the inbound server." +
		" Alternatively, this can be set with the following environment variable: " + agentInboundHostEnvKey

	// inbound host external url flag.
	agentInboundHostExternalFlagName      = "inbound-host-external"
	agentInboundHostExternalEnvKey        = "ARIESD_INBOUND_HOST_EXTERNAL"
	agentInboundHostExternalFlagShorthand = "e"
	agentInboundHostExternalFlagUsage     = "Inbound endpoint URL as seen externally, advertised in invitations." +
		" Defaults to http:// followed by the inbound host." +
		" Alternatively, this can be set with the following environment variable: " + agentInboundHostExternalEnvKey

	// inbound websocket flag.
	agentInboundWSFlagName  = "inbound-ws"
	agentInboundWSEnvKey    = "ARIESD_INBOUND_WS"
	agentInboundWSFlagUsage = "Inbound WebSocket Host Name:Port." +
		" Alternatively, this can be set with the following environment variable: " + agentInboundWSEnvKey

	// db path flag.
	agentDBPathFlagName      = "db-path"
	agentDBPathEnvKey        = "ARIESD_DB_PATH"
	agentDBPathFlagShorthand = "d"
	agentDBPathFlagUsage     = "Directory of the database. In memory storage is used if not set." +
		" Alternatively, this can be set with the following environment variable: " + agentDBPathEnvKey

	// label flag.
	agentLabelFlagName      = "label"
	agentLabelEnvKey        = "ARIESD_LABEL"
	agentLabelFlagShorthand = "l"
	agentLabelFlagUsage     = "Label of this agent, sent in invitations and requests." +
		" Alternatively, this can be set with the following environment variable: " + agentLabelEnvKey

	// auto accept flag.
	agentAutoAcceptFlagName  = "auto-accept"
	agentAutoAcceptEnvKey    = "ARIESD_AUTO_ACCEPT"
	agentAutoAcceptFlagUsage = "Auto accept requests." +
		" Possible values [true] [false]. Defaults to false if not set." +
		" Alternatively, this can be set with the following environment variable: " + agentAutoAcceptEnvKey

	// transport return route option flag.
	agentTransportReturnRouteFlagName  = "transport-return-route"
	agentTransportReturnRouteEnvKey    = "ARIESD_TRANSPORT_RETURN_ROUTE"
	agentTransportReturnRouteFlagUsage = "Transport return route requested on outbound messages." +
		" Possible values [none] [all] [thread]." +
		" Alternatively, this can be set with the following environment variable: " + agentTransportReturnRouteEnvKey

	// message ttl flag.
	agentMessageTTLFlagName  = "message-ttl"
	agentMessageTTLEnvKey    = "ARIESD_MESSAGE_TTL"
	agentMessageTTLFlagUsage = "Lifetime of messages queued for pickup, e.g. 24h. Defaults to 72h." +
		" Alternatively, this can be set with the following environment variable: " + agentMessageTTLEnvKey

	// send retries flag.
	agentSendRetriesFlagName  = "send-retries"
	agentSendRetriesEnvKey    = "ARIESD_SEND_RETRIES"
	agentSendRetriesFlagUsage = "Number of retries of a failed outbound send." +
		" Alternatively, this can be set with the following environment variable: " + agentSendRetriesEnvKey

	// log level.
	agentLogLevelFlagName  = "log-level"
	agentLogLevelEnvKey    = "ARIESD_LOG_LEVEL"
	agentLogLevelFlagUsage = "Log level." +
		" Possible values [INFO] [DEBUG] [ERROR] [WARNING] [CRITICAL] . Defaults to INFO if not set." +
		" Alternatively, this can be set with the following environment variable: " + agentLogLevelEnvKey

	// config file flag.
	agentConfigFileFlagName  = "config"
	agentConfigFileFlagUsage = "Optional settings file (yaml, json or toml) holding any of the flags above."
)

var (
	errMissingHost        = errors.New("host not provided")
	errMissingInboundHost = errors.New("neither HTTP nor WebSocket inbound host provided")
	logger                = log.New("aries-framework/agentd")
)

// flag name to framework setting name, for every flag passed through to the framework.
// nolint:gochecknoglobals
var frameworkSettings = map[string]string{
	agentInboundHostFlagName:          "inbound-http",
	agentInboundHostExternalFlagName:  "endpoint",
	agentInboundWSFlagName:            "inbound-ws",
	agentDBPathFlagName:               "store-path",
	agentLabelFlagName:                "label",
	agentAutoAcceptFlagName:           "auto-accept",
	agentTransportReturnRouteFlagName: "transport-return-route",
	agentMessageTTLFlagName:           "message-ttl",
	agentSendRetriesFlagName:          "send-retries",
}

type server interface {
	ListenAndServe(host string, router http.Handler) error
}

// HTTPServer represents an actual server implementation.
type HTTPServer struct{}

// ListenAndServe starts the server using the standard Go HTTP server implementation.
func (s *HTTPServer) ListenAndServe(host string, router http.Handler) error {
	return http.ListenAndServe(host, router) // nolint:gosec
}

// Cmd returns the Cobra start command.
func Cmd(server server) (*cobra.Command, error) {
	v := viper.New()

	startCmd := createStartCMD(server, v)

	createFlags(startCmd.Flags())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(startCmd.Flags()); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	return startCmd, nil
}

func createStartCMD(server server, v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start an agent",
		Long:  `Start an Aries agent exposing its inbound endpoint and an admin API`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configFile := v.GetString(agentConfigFileFlagName); configFile != "" {
				v.SetConfigFile(configFile)

				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("read config file %s: %w", configFile, err)
				}
			}

			return startAgent(server, v)
		},
	}
}

func createFlags(flags *pflag.FlagSet) {
	flags.StringP(agentHostFlagName, agentHostFlagShorthand, "", agentHostFlagUsage)
	flags.StringP(agentInboundHostFlagName, agentInboundHostFlagShorthand, "", agentInboundHostFlagUsage)
	flags.StringP(agentInboundHostExternalFlagName, agentInboundHostExternalFlagShorthand, "",
		agentInboundHostExternalFlagUsage)
	flags.String(agentInboundWSFlagName, "", agentInboundWSFlagUsage)
	flags.StringP(agentDBPathFlagName, agentDBPathFlagShorthand, "", agentDBPathFlagUsage)
	flags.StringP(agentLabelFlagName, agentLabelFlagShorthand, "", agentLabelFlagUsage)
	flags.Bool(agentAutoAcceptFlagName, false, agentAutoAcceptFlagUsage)
	flags.String(agentTransportReturnRouteFlagName, "", agentTransportReturnRouteFlagUsage)
	flags.Duration(agentMessageTTLFlagName, 0, agentMessageTTLFlagUsage)
	flags.Uint64(agentSendRetriesFlagName, 0, agentSendRetriesFlagUsage)
	flags.String(agentLogLevelFlagName, "", agentLogLevelFlagUsage)
	flags.String(agentConfigFileFlagName, "", agentConfigFileFlagUsage)
}

// settings collects the framework settings set by flag, environment or config file.
func settings(v *viper.Viper) map[string]interface{} {
	s := make(map[string]interface{})

	for flag, key := range frameworkSettings {
		if v.IsSet(flag) {
			s[key] = v.Get(flag)
		}
	}

	if inbound, ok := s["inbound-http"].(string); ok && inbound != "" {
		if endpoint, _ := s["endpoint"].(string); endpoint == "" {
			s["endpoint"] = "http://" + inbound
		}
	}

	return s
}

func startAgent(srv server, v *viper.Viper) error {
	if err := setLogLevel(v.GetString(agentLogLevelFlagName)); err != nil {
		return err
	}

	host := v.GetString(agentHostFlagName)
	if host == "" {
		return errMissingHost
	}

	if v.GetString(agentInboundHostFlagName) == "" && v.GetString(agentInboundWSFlagName) == "" {
		return errMissingInboundHost
	}

	cfg, err := aries.ConfigFromMap(settings(v))
	if err != nil {
		return fmt.Errorf("invalid agent settings: %w", err)
	}

	agent, err := aries.New(defaults.FromConfig(cfg)...)
	if err != nil {
		return fmt.Errorf("failed to start aries agentd on [%s]: %w", host, err)
	}

	defer func() {
		if errClose := agent.Close(); errClose != nil {
			logger.Warnf("agent close: %v", errClose)
		}
	}()

	router, err := newAdminRouter(agent, cfg.Label)
	if err != nil {
		return fmt.Errorf("failed to start aries agentd on [%s]: %w", host, err)
	}

	handler := cors.New(
		cors.Options{
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodHead},
			AllowedHeaders: []string{"Origin", "Accept", "Content-Type", "X-Requested-With"},
		},
	).Handler(router)

	logger.Infof("starting aries agentd admin api on [%s], inbound endpoint [%s]", host, agent.Context().Endpoint())

	if err = srv.ListenAndServe(host, handler); err != nil {
		return fmt.Errorf("failed to start aries agentd on [%s], cause: %w", host, err)
	}

	return nil
}

func setLogLevel(logLevel string) error {
	if logLevel != "" {
		level, err := log.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("failed to parse log level '%s' : %w", logLevel, err)
		}

		log.SetLevel("", level)

		logger.Infof("logger level set to %s", logLevel)
	}

	return nil
}
