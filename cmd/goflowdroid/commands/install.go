/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: install.go
Description: The install command. Downloads FlowDroid and the Android platforms and
lays out the default folders.
*/

package commands

import (
	"fmt"

	"github.com/gvieralopez/goflowdroid/pkg/install"
	"github.com/spf13/cobra"
)

// RunInstall installs every analysis resource
func RunInstall(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	inst := install.NewInstaller(cfg, logger)

	only, _ := cmd.Flags().GetString("only")
	switch only {
	case "":
		err = inst.InstallAll(cmd.Context())
	case "flowdroid":
		err = inst.DownloadFlowDroid(cmd.Context())
	case "android":
		err = inst.DownloadAndroid(cmd.Context())
	case "sources-sinks":
		err = inst.InstallSourcesSinks()
	case "apk-folder":
		err = inst.CreateAPKFolder()
	default:
		return fmt.Errorf("unknown component %q (flowdroid, android, sources-sinks, apk-folder)", only)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Resources installed in %s\n", cfg.Home)
	return nil
}
