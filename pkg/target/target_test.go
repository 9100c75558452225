package target_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	sys "golang.org/x/sys/unix"

	"github.com/burritoOverflow/sdb/pkg/target"
	"github.com/burritoOverflow/sdb/proc"
)

func TestLaunchBindsProcessAndElf(t *testing.T) {
	tgt, err := target.Launch("/bin/sleep", []string{"30"}, -1)
	require.NoError(t, err)
	defer tgt.Close()

	require.NoError(t, sys.Kill(tgt.Process().Pid(), 0))
	require.Equal(t, "/bin/sleep", tgt.Elf().Path())
	require.False(t, tgt.Elf().LoadBias().IsNull())
}

func TestAttachBindsProcessAndElf(t *testing.T) {
	launched, err := proc.Launch("/bin/sleep", []string{"30"}, false, -1)
	require.NoError(t, err)
	defer launched.Close()

	tgt, err := target.Attach(launched.Pid())
	require.NoError(t, err)
	defer tgt.Close()

	require.Equal(t, launched.Pid(), tgt.Process().Pid())
	require.Equal(t, fmt.Sprintf("/proc/%d/exe", launched.Pid()), tgt.Elf().Path())
}

func TestLaunchNoSuchProgram(t *testing.T) {
	_, err := target.Launch("/no/such/program", nil, -1)
	require.Error(t, err)
}
